package domain

import (
	"strings"
)

type Qualification string

const (
	QualificationCertificate Qualification = "certificate"
	QualificationDiploma     Qualification = "diploma"
	QualificationPGDiploma   Qualification = "pg_diploma"
)

// Qualifications lists every qualification in ascending threshold order.
var Qualifications = []Qualification{QualificationCertificate, QualificationDiploma, QualificationPGDiploma}

// ParseQualification accepts the canonical names plus common spellings
// ("PG Diploma", "pg-diploma").
func ParseQualification(s string) (Qualification, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	switch Qualification(k) {
	case QualificationCertificate, QualificationDiploma, QualificationPGDiploma:
		return Qualification(k), nil
	case "pgdiploma", "postgraduate_diploma":
		return QualificationPGDiploma, nil
	}
	return "", ErrUnknownQualification
}

// Thresholds maps a qualification to the credits it requires.
type Thresholds map[Qualification]float64

func DefaultThresholds() Thresholds {
	return Thresholds{
		QualificationCertificate: 20,
		QualificationDiploma:     30,
		QualificationPGDiploma:   40,
	}
}

func (t Thresholds) Required(q Qualification) (float64, error) {
	v, ok := t[q]
	if !ok || v <= 0 {
		return 0, ErrUnknownQualification
	}
	return v, nil
}
