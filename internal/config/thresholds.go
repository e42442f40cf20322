package config

import "bprd-credits/internal/domain"

// Thresholds returns the qualification table, falling back to the default
// for any value that is not positive.
func (c *Config) Thresholds() domain.Thresholds {
	t := domain.DefaultThresholds()
	if c == nil {
		return t
	}
	set := func(q domain.Qualification, v float64) {
		if v > 0 {
			t[q] = v
		}
	}
	set(domain.QualificationCertificate, c.CertificateCredits)
	set(domain.QualificationDiploma, c.DiplomaCredits)
	set(domain.QualificationPGDiploma, c.PGDiplomaCredits)
	return t
}
