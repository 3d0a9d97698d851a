/*
 * @module service/meta/datasets
 * @description Declarative dataset definitions: Socrata resource ids, column classes, row filters, natural keys and measures for the supported open datasets
 * @architecture Layered architecture - metadata layer
 * @documentReference service/pipeline, api/controllers
 * @stateFlow Static configuration consumed by cleaner, dimension/fact builders and controllers
 * @rules Column names are declared in their source (Socrata) rendering; the cleaner matches them after column-name normalization
 * @dependencies none
 * @refs service/pipeline/cleaner.go, service/pipeline/pipeline.go
 */

package meta

// Dataset names.
const (
	DatasetEducation   = "education"
	DatasetProcurement = "procurement"
)

// RowFilter drops rows whose normalized value in Column is listed in Exclude.
type RowFilter struct {
	Column  string
	Exclude []string
}

// DatasetConfig declares how one dataset is cleaned and modelled.
type DatasetConfig struct {
	Name            string
	ResourceID      string
	DefaultLimit    int
	RequiredColumns []string
	NumericColumns  []string
	DateColumns     []string
	// KeyColumns hold categorical natural keys: normalized aggressively
	// (punctuation stripped) and run through the alias table.
	KeyColumns []string
	// CodeColumns map a column to the fixed width its values are
	// zero-padded to, so numeric codes join cleanly with reference layers.
	CodeColumns map[string]int
	RowFilters  []RowFilter
	// Star-schema roles. Empty for datasets modelled without one.
	TimeKeyColumns []string
	GeoKeyColumns  []string
	MeasureColumns []string
}

// Education: MEN pre-school/basic/middle education statistics (datos.gov.co
// resource nudc-7mev), one row per municipality and year.
var EducationDataset = DatasetConfig{
	Name:         DatasetEducation,
	ResourceID:   "nudc-7mev",
	DefaultLimit: 50000,
	RequiredColumns: []string{
		"a_o", "departamento", "municipio", "c_digo_departamento",
		"poblaci_n_5_16", "tasa_matriculaci_n_5_16",
		"cobertura_neta", "cobertura_bruta",
	},
	NumericColumns: []string{
		"a_o", "poblaci_n_5_16", "tasa_matriculaci_n_5_16",
		"cobertura_neta", "cobertura_bruta",
	},
	KeyColumns:  []string{"departamento", "municipio"},
	CodeColumns: map[string]int{"c_digo_departamento": 2},
	RowFilters: []RowFilter{
		// The source mixes a country-level roll-up into the
		// municipality rows.
		{Column: "departamento", Exclude: []string{"nacional"}},
	},
	TimeKeyColumns: []string{"a_o"},
	GeoKeyColumns:  []string{"c_digo_departamento", "departamento", "municipio"},
	MeasureColumns: []string{
		"poblaci_n_5_16", "tasa_matriculaci_n_5_16",
		"cobertura_neta", "cobertura_bruta",
	},
}

// Procurement: SECOP Integrado public contracts (datos.gov.co resource
// rpmr-utcd). Modelled without a star schema; cleaned and aggregated directly.
var ProcurementDataset = DatasetConfig{
	Name:         DatasetProcurement,
	ResourceID:   "rpmr-utcd",
	DefaultLimit: 5000,
	RequiredColumns: []string{
		"departamento_entidad", "tipo_de_contrato", "documento_proveedor",
		"valor_contrato", "fecha_inicio_ejecuci_n", "fecha_fin_ejecuci_n",
	},
	NumericColumns: []string{"valor_contrato", "documento_proveedor"},
	DateColumns:    []string{"fecha_inicio_ejecuci_n", "fecha_fin_ejecuci_n"},
	KeyColumns:     []string{"departamento_entidad"},
}

// Population reference file (DANE projections) column names after column-name
// normalization: DPNOM -> dpnom, DPMP -> dpmp, AÑO -> ano,
// Población -> poblacion, ÁREA GEOGRÁFICA -> area_geografica.
const (
	PopulationColDepartment   = "dpnom"
	PopulationColMunicipality = "dpmp"
	PopulationColYear         = "ano"
	PopulationColPopulation   = "poblacion"
	PopulationColArea         = "area_geografica"
)

// Derived ratio measure added by the population enrichment step.
const EnrollmentRatioColumn = "pct_matriculados_vs_pob_total"

// DepartmentAliases maps known-equivalent department spellings to one
// canonical key, applied after key normalization.
var DepartmentAliases = map[string]string{
	"bogota dc":                  "bogota",
	"distrito capital de bogota": "bogota",
	"no definido":                "sin_departamento",
	"san andres providencia y santa catalina": "san andres",
}

var datasets = map[string]*DatasetConfig{
	DatasetEducation:   &EducationDataset,
	DatasetProcurement: &ProcurementDataset,
}

// GetDataset returns the configuration for a dataset name, or nil.
func GetDataset(name string) *DatasetConfig {
	return datasets[name]
}

// DatasetNames lists the supported dataset names.
func DatasetNames() []string {
	return []string{DatasetEducation, DatasetProcurement}
}
