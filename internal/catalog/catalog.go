// Package catalog holds the static form definition: the three field groups in
// persisted column order and the choice sets behind dropdown fields.
package catalog

// Kind tells the controller whether a field expects free text or a selection.
type Kind string

const (
	KindText   Kind = "text"
	KindChoice Kind = "choice"
)

// Prefill marks fields whose value can be supplied before prompting.
type Prefill string

const (
	PrefillNone     Prefill = ""
	PrefillOperator Prefill = "operator"
)

// NotApplicable is stored for a conditional field that was skipped.
const NotApplicable = "-"

type Field struct {
	Key         string
	Label       string
	Kind        Kind
	Conditional bool
	Prefill     Prefill
}

func (f Field) IsChoice() bool { return f.Kind == KindChoice }

// Option is one selectable entry of a choice set. The stored value is Label.
// Requires names a conditional field that becomes applicable when this
// option is selected.
type Option struct {
	Key      string
	Label    string
	ImageURL string
	Requires string
}

type Group string

const (
	GroupPatient     Group = "patient"
	GroupTooth       Group = "tooth"
	GroupExamination Group = "examination"
)

const (
	FieldOperator     = "dokterPemeriksa"
	FieldToothNumber  = "gigiDikeluhkan"
	FieldCondition    = "kondisiGigi"
	FieldCariesSite   = "letakKaries"
	FieldTreatment    = "rekomendasiPerawatan"
	FieldOcclusion    = "oklusi"
	FieldTorusPalatal = "torusPalatinus"
	FieldTorusMandib  = "torusMandibularis"
	FieldPalate       = "palatum"
)

var patientFields = []Field{
	{Key: "namaPasien", Label: "Nama Pasien", Kind: KindText},
	{Key: "nik", Label: "NIK / No. RM", Kind: KindText},
	{Key: "jenisKelamin", Label: "Jenis Kelamin", Kind: KindText},
	{Key: "usia", Label: "Usia", Kind: KindText},
	{Key: "golonganDarah", Label: "Golongan Darah", Kind: KindText},
	{Key: "alamat", Label: "Alamat", Kind: KindText},
	{Key: "noTelepon", Label: "No. Telepon", Kind: KindText},
	{Key: FieldOperator, Label: "Dokter Pemeriksa", Kind: KindText, Prefill: PrefillOperator},
}

var toothFields = []Field{
	{Key: FieldToothNumber, Label: "Gigi yang Dikeluhkan", Kind: KindText},
	{Key: FieldCondition, Label: "Kondisi Gigi", Kind: KindChoice},
	{Key: FieldCariesSite, Label: "Letak Karies", Kind: KindChoice, Conditional: true},
	{Key: FieldTreatment, Label: "Rekomendasi Perawatan", Kind: KindChoice},
}

var examinationFields = []Field{
	{Key: FieldOcclusion, Label: "Oklusi", Kind: KindChoice},
	{Key: FieldTorusPalatal, Label: "Torus Palatinus", Kind: KindChoice},
	{Key: FieldTorusMandib, Label: "Torus Mandibularis", Kind: KindChoice},
	{Key: FieldPalate, Label: "Palatum", Kind: KindChoice},
	{Key: "diastema", Label: "Diastema", Kind: KindText},
	{Key: "gigiAnomali", Label: "Gigi Anomali", Kind: KindText},
	{Key: "skorD", Label: "D (Decay)", Kind: KindText},
	{Key: "skorM", Label: "M (Missing)", Kind: KindText},
	{Key: "skorF", Label: "F (Filled)", Kind: KindText},
	{Key: "skorDMF", Label: "Skor DMF", Kind: KindText},
}

const driveImage = "https://drive.google.com/uc?export=view&id="

var choiceSets = map[string][]Option{
	FieldCondition: {
		{Key: "normal", Label: "Normal", ImageURL: driveImage + "1Fde4xyCSRUwUwc8idwCPVnT_cAWrLOxf"},
		{Key: "fraktur", Label: "Fraktur", ImageURL: driveImage + "1RJpVw3u6c5I18TPQL3Tgy72ZzCTeIgpx"},
		{Key: "sisa_akar", Label: "Sisa Akar", ImageURL: driveImage + "1TYI7yWmxjo0RXjUbqNb7vT5yj5-XM4an"},
		{Key: "tambalan", Label: "Tambalan", ImageURL: driveImage + "1otLZga-Id3Tnn6OEuigG7fjoRxnfW_1X"},
		{Key: "gigi_hilang", Label: "Gigi Hilang", ImageURL: driveImage + "1AwqwpS9dCV1XwCVjhYa8WRzQQXizSIhm"},
		{Key: "impaksi", Label: "Impaksi", ImageURL: driveImage + "1it1pkXlMpJstpGdHVPn49lKKhnLAKuQB"},
		{Key: "gigi_sehat", Label: "Gigi Sehat", ImageURL: driveImage + "17mvnw9AsNH9pcIFnM_Jbv8SNJQ13G8Fk"},
		// caries is illustrated by the site image instead
		{Key: "karies", Label: "Karies", Requires: FieldCariesSite},
	},
	FieldCariesSite: {
		{Key: "D", Label: "D-car", ImageURL: driveImage + "1RUcHKcumJLI33BdEI1NAmYQoRJYnV-hI"},
		{Key: "L", Label: "L-car", ImageURL: driveImage + "1YqkM3QxMjgAX-jj2ud3DutY8O0CMty5x"},
		{Key: "M", Label: "M-car", ImageURL: driveImage + "1B0-vG7584zjxlM0EMr3brUC6o-Ma4u-M"},
		{Key: "O", Label: "O-car", ImageURL: driveImage + "18tO2WkHWCwIUr09oDXY9x0sIQVSBJ2W0"},
		{Key: "V", Label: "V-car", ImageURL: driveImage + "1qg_M5fEU4NX6vG8vZLyCIo9dC_pTdnPt"},
	},
	FieldTreatment: {
		{Key: "cabut", Label: "Cabut gigi"},
		{Key: "saluran_akar", Label: "Perawatan saluran akar"},
		{Key: "tambal", Label: "Tambal gigi"},
		{Key: "scalling", Label: "Scalling"},
		{Key: "odontektomi", Label: "Odontektomi"},
		{Key: "dhe", Label: "DHE"},
	},
	FieldOcclusion: {
		{Key: "normal_bite", Label: "Normal Bite"},
		{Key: "cross_bite", Label: "Cross Bite"},
		{Key: "steep_bite", Label: "Steep Bite"},
	},
	FieldTorusPalatal: {
		{Key: "tidak_ada", Label: "Tidak Ada"},
		{Key: "kecil", Label: "Kecil"},
		{Key: "sedang", Label: "Sedang"},
		{Key: "besar", Label: "Besar"},
		{Key: "multiple", Label: "Multiple"},
	},
	FieldTorusMandib: {
		{Key: "tidak_ada", Label: "Tidak Ada"},
		{Key: "kiri", Label: "Kiri"},
		{Key: "kanan", Label: "Kanan"},
		{Key: "kedua_sisi", Label: "Kedua Sisi"},
	},
	FieldPalate: {
		{Key: "dalam", Label: "Dalam"},
		{Key: "sedang", Label: "Sedang"},
		{Key: "rendah", Label: "Rendah"},
	},
}

// Fields returns the ordered definitions of a group. Callers must not modify
// the returned slice.
func Fields(g Group) []Field {
	switch g {
	case GroupPatient:
		return patientFields
	case GroupTooth:
		return toothFields
	case GroupExamination:
		return examinationFields
	default:
		return nil
	}
}

// Lookup finds a field of a group by key.
func Lookup(g Group, key string) (Field, int, bool) {
	for i, f := range Fields(g) {
		if f.Key == key {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// Choices returns the choice set backing a field, or nil for text fields.
func Choices(fieldKey string) []Option {
	return choiceSets[fieldKey]
}

// FindOption resolves an option of a field's choice set by key.
func FindOption(fieldKey, optionKey string) (Option, bool) {
	for _, o := range choiceSets[fieldKey] {
		if o.Key == optionKey {
			return o, true
		}
	}
	return Option{}, false
}

// OptionByLabel resolves a stored value back to its option.
func OptionByLabel(fieldKey, label string) (Option, bool) {
	for _, o := range choiceSets[fieldKey] {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}

// Applicable reports whether a field should be prompted given the values
// already collected for the fields before it in the same group.
func Applicable(g Group, key string, values map[string]string) bool {
	f, idx, ok := Lookup(g, key)
	if !ok {
		return false
	}
	if !f.Conditional {
		return true
	}
	for _, prior := range Fields(g)[:idx] {
		if !prior.IsChoice() {
			continue
		}
		o, ok := OptionByLabel(prior.Key, values[prior.Key])
		if ok && o.Requires == f.Key {
			return true
		}
	}
	return false
}

// Width is the number of catalog columns across all groups.
func Width() int {
	return len(patientFields) + len(toothFields) + len(examinationFields)
}
