package procurement

import (
	"fmt"
	"strings"
)

// ProcedureType is the award procedure of a public tender.
type ProcedureType string

// Procedure types.
const (
	ProcedureMAPA                ProcedureType = "MAPA"
	ProcedureOuvert              ProcedureType = "Ouvert"
	ProcedureRestreint           ProcedureType = "Restreint"
	ProcedureDialogueCompetitif  ProcedureType = "Dialogue compétitif"
	ProcedurePartenariatInnovant ProcedureType = "Partenariat d'innovation"
	ProcedureConcours            ProcedureType = "Concours"
)

var procedureTypes = []ProcedureType{
	ProcedureMAPA, ProcedureOuvert, ProcedureRestreint,
	ProcedureDialogueCompetitif, ProcedurePartenariatInnovant, ProcedureConcours,
}

// Sector is the public buyer family.
type Sector string

// Sectors.
const (
	SectorEtat        Sector = "État"
	SectorTerritorial Sector = "Territorial"
	SectorHospitalier Sector = "Hospitalier"
	SectorEducation   Sector = "Éducation"
	SectorEPAEPIC     Sector = "EPA/EPIC"
	SectorDefense     Sector = "Défense"
)

var sectors = []Sector{
	SectorEtat, SectorTerritorial, SectorHospitalier,
	SectorEducation, SectorEPAEPIC, SectorDefense,
}

// TechnicalDomain is an IT field a tender covers.
type TechnicalDomain string

// Technical domains.
const (
	DomainDeveloppement TechnicalDomain = "Développement"
	DomainInfraCloud    TechnicalDomain = "Infrastructure/Cloud"
	DomainCyber         TechnicalDomain = "Cybersécurité"
	DomainDataIA        TechnicalDomain = "Data/IA"
	DomainConseil       TechnicalDomain = "Conseil"
	DomainIntegration   TechnicalDomain = "Intégration"
	DomainSupport       TechnicalDomain = "Support/Maintenance"
)

var technicalDomains = []TechnicalDomain{
	DomainDeveloppement, DomainInfraCloud, DomainCyber, DomainDataIA,
	DomainConseil, DomainIntegration, DomainSupport,
}

// ParseProcedureType matches s case-insensitively against known procedure types.
func ParseProcedureType(s string) (ProcedureType, error) {
	for _, p := range procedureTypes {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown procedure type %q", s)
}

// ParseSector matches s case-insensitively against known sectors.
func ParseSector(s string) (Sector, error) {
	for _, v := range sectors {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown sector %q", s)
}

// ParseTechnicalDomain matches s case-insensitively against known domains.
func ParseTechnicalDomain(s string) (TechnicalDomain, error) {
	for _, d := range technicalDomains {
		if strings.EqualFold(string(d), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown technical domain %q", s)
}

// AmountUnspecified is the bucket label for an unknown amount.
const AmountUnspecified = "Non spécifié"

// AmountRange buckets an estimated amount (euros) for benchmarking.
func AmountRange(amount int64) string {
	switch {
	case amount < 25_000:
		return "0-25k"
	case amount < 100_000:
		return "25k-100k"
	case amount < 500_000:
		return "100k-500k"
	case amount < 1_000_000:
		return "500k-1M"
	case amount < 5_000_000:
		return "1M-5M"
	default:
		return "5M+"
	}
}
