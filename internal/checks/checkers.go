package checks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"datex/internal/profile"
	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

// Checker runs one screening against provider-held profile data.
type Checker interface {
	Run(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, req CheckRequest, now time.Time) (CheckResult, error)
}

// profileChecker is the base for checkers that read a single bundle.
type profileChecker struct {
	profiles profile.Store
	category id.DataCategory
}

func (c profileChecker) bundle(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint) (profile.Bundle, error) {
	return c.profiles.FindBundle(ctx, provider, subject, c.category)
}

// incomplete marks a check that could not produce a verdict. Risk unknown
// keeps it from lowering the aggregate.
func incomplete(t CheckType, reason string) CheckResult {
	return CheckResult{Type: t, Completed: false, Risk: id.RiskUnknown, Error: reason}
}

// sanctionsChecker screens the compliance bundle's sanctions listing.
type sanctionsChecker struct{ profileChecker }

func NewSanctionsChecker(profiles profile.Store) Checker {
	return sanctionsChecker{profileChecker{profiles: profiles, category: id.CategoryComplianceData}}
}

func (c sanctionsChecker) Run(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, _ CheckRequest, _ time.Time) (CheckResult, error) {
	b, err := c.bundle(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return incomplete(CheckSanctions, "compliance data not held for subject"), nil
		}
		return CheckResult{}, err
	}
	result := CheckResult{Type: CheckSanctions, Completed: true, Risk: id.RiskLow}
	if listed, _ := b.Data["sanctionsListed"].(bool); listed {
		result.Risk = id.RiskHigh
		result.Findings = append(result.Findings, "subject appears on a sanctions list")
		if list, ok := b.Data["sanctionsList"].(string); ok && list != "" {
			result.Findings = append(result.Findings, "listed on: "+list)
		}
	}
	return result, nil
}

// pepChecker screens for politically exposed person status.
type pepChecker struct{ profileChecker }

func NewPEPChecker(profiles profile.Store) Checker {
	return pepChecker{profileChecker{profiles: profiles, category: id.CategoryComplianceData}}
}

func (c pepChecker) Run(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, _ CheckRequest, _ time.Time) (CheckResult, error) {
	b, err := c.bundle(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return incomplete(CheckPEP, "compliance data not held for subject"), nil
		}
		return CheckResult{}, err
	}
	result := CheckResult{Type: CheckPEP, Completed: true, Risk: id.RiskLow}
	if pep, _ := b.Data["pepStatus"].(bool); pep {
		result.Risk = id.RiskMedium
		result.Findings = append(result.Findings, "subject is a politically exposed person")
	}
	return result, nil
}

// adverseMediaChecker grades by the number of adverse media mentions.
type adverseMediaChecker struct{ profileChecker }

func NewAdverseMediaChecker(profiles profile.Store) Checker {
	return adverseMediaChecker{profileChecker{profiles: profiles, category: id.CategoryComplianceData}}
}

func (c adverseMediaChecker) Run(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, _ CheckRequest, _ time.Time) (CheckResult, error) {
	b, err := c.bundle(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return incomplete(CheckAdverseMedia, "compliance data not held for subject"), nil
		}
		return CheckResult{}, err
	}
	mentions, _ := toInt(b.Data["adverseMediaMentions"])
	result := CheckResult{Type: CheckAdverseMedia, Completed: true, Risk: id.RiskLow}
	switch {
	case mentions >= 5:
		result.Risk = id.RiskHigh
	case mentions > 0:
		result.Risk = id.RiskMedium
	}
	if mentions > 0 {
		result.Findings = append(result.Findings,
			fmt.Sprintf("%d adverse media mention(s) on record", mentions))
	}
	return result, nil
}

// ageChecker verifies a minimum age against the basic data bundle. The
// verdict deliberately exposes no birth date and no exact age; the proof is
// a digest over the inputs so a verifier can tie the verdict to this run.
type ageChecker struct{ profileChecker }

func NewAgeChecker(profiles profile.Store) Checker {
	return ageChecker{profileChecker{profiles: profiles, category: id.CategoryBasicData}}
}

func (c ageChecker) Run(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, req CheckRequest, now time.Time) (CheckResult, error) {
	if req.MinimumAge <= 0 {
		return incomplete(CheckAgeVerification, "minimumAge must be positive"), nil
	}
	b, err := c.bundle(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return incomplete(CheckAgeVerification, "basic data not held for subject"), nil
		}
		return CheckResult{}, err
	}
	dobStr, _ := b.Data["dateOfBirth"].(string)
	dob, err := time.Parse("2006-01-02", dobStr)
	if err != nil {
		return incomplete(CheckAgeVerification, "no usable birth date on record"), nil
	}

	verified := !dob.AddDate(req.MinimumAge, 0, 0).After(now)
	result := CheckResult{
		Type:      CheckAgeVerification,
		Completed: true,
		Risk:      id.RiskLow,
		Details: map[string]any{
			"ageVerified": verified,
			"minimumAge":  req.MinimumAge,
			"proof":       ageProof(subject, req.MinimumAge, verified, now),
		},
	}
	if !verified {
		result.Risk = id.RiskHigh
		result.Findings = append(result.Findings, "subject does not meet the minimum age")
	}
	return result, nil
}

func ageProof(subject id.Fingerprint, minimumAge int, verified bool, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%t|%s",
		subject, minimumAge, verified, now.UTC().Format("2006-01-02"))))
	return hex.EncodeToString(sum[:])
}

// mifidChecker grades investment suitability from the KYC bundle.
type mifidChecker struct{ profileChecker }

func NewMIFIDChecker(profiles profile.Store) Checker {
	return mifidChecker{profileChecker{profiles: profiles, category: id.CategoryKYCData}}
}

func (c mifidChecker) Run(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, _ CheckRequest, _ time.Time) (CheckResult, error) {
	b, err := c.bundle(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return incomplete(CheckMIFIDSuitability, "kyc data not held for subject"), nil
		}
		return CheckResult{}, err
	}
	experience, _ := b.Data["investmentExperience"].(string)
	result := CheckResult{Type: CheckMIFIDSuitability, Completed: true}
	switch experience {
	case "professional", "experienced":
		result.Risk = id.RiskLow
	case "informed":
		result.Risk = id.RiskMedium
	case "basic", "none":
		result.Risk = id.RiskMedium
		result.Findings = append(result.Findings, "limited investment experience on record")
	default:
		return incomplete(CheckMIFIDSuitability, "no suitability assessment on record"), nil
	}
	result.Details = map[string]any{"investmentExperience": experience}
	return result, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
