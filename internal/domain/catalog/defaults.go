package catalog

func price(v float64) *float64 { return &v }

func between(min, max float64, unit string) *Range {
	return &Range{Min: &min, Max: &max, Unit: unit}
}

func below(max float64, unit string) *Range {
	return &Range{Max: &max, Unit: unit}
}

func above(min float64, unit string) *Range {
	return &Range{Min: &min, Unit: unit}
}

func text(normal string) *Range {
	return &Range{NormalText: normal}
}

// DefaultSections is the built-in catalog used when no catalog file is configured.
func DefaultSections() []Section {
	return []Section{
		{
			Name: "HEMATOLOGY",
			Tests: []Test{
				{Name: "CBC", Price: price(350)},
				{Name: "Hemoglobin", Parent: "CBC", Range: between(12, 16, "g/dL")},
				{Name: "Hematocrit", Parent: "CBC", Range: between(37, 47, "%")},
				{Name: "WBC Count", Parent: "CBC", Range: between(5, 10, "x10^9/L")},
				{Name: "RBC Count", Parent: "CBC", Range: between(4.2, 5.4, "x10^12/L")},
				{Name: "Platelet Count", Parent: "CBC", Range: between(150, 400, "x10^9/L")},
				{Name: "Neutrophils", Parent: "CBC", Range: between(50, 70, "%")},
				{Name: "Lymphocytes", Parent: "CBC", Range: between(20, 40, "%")},
				{Name: "Monocytes", Parent: "CBC", Range: between(2, 8, "%")},
				{Name: "Eosinophils", Parent: "CBC", Range: between(1, 4, "%")},
				{Name: "Basophils", Parent: "CBC", Range: between(0, 1, "%")},
				{Name: "ESR", Price: price(150), Range: between(0, 20, "mm/hr")},
				{Name: "Clotting Time", Price: price(100), Range: between(2, 6, "min")},
				{Name: "Bleeding Time", Price: price(100), Range: between(1, 3, "min")},
			},
		},
		{
			Name: "CLINICAL CHEMISTRY",
			Tests: []Test{
				{Name: "Blood Glucose", Price: price(150), Range: between(70, 100, "mg/dL")},
				{Name: "HbA1c", Price: price(900), Range: between(4, 5.6, "%")},
				{Name: "Lipid Profile", Price: price(800)},
				{Name: "Total Cholesterol", Parent: "Lipid Profile", Range: below(200, "mg/dL")},
				{Name: "Triglycerides", Parent: "Lipid Profile", Range: below(150, "mg/dL")},
				{Name: "HDL Cholesterol", Parent: "Lipid Profile", Range: above(40, "mg/dL")},
				{Name: "LDL Cholesterol", Parent: "Lipid Profile", Range: below(100, "mg/dL")},
				{Name: "Creatinine", Price: price(200), Range: between(0.6, 1.2, "mg/dL")},
				{Name: "BUN", Price: price(200), Range: between(7, 20, "mg/dL")},
				{Name: "Uric Acid", Price: price(200), Range: between(3.5, 7.2, "mg/dL")},
				{Name: "SGPT/ALT", Price: price(250), Range: between(7, 56, "U/L")},
				{Name: "SGOT/AST", Price: price(250), Range: between(10, 40, "U/L")},
			},
		},
		{
			Name: "CLINICAL MICROSCOPY",
			Tests: []Test{
				{Name: "Urinalysis", Price: price(100)},
				{Name: "Fecalysis", Price: price(100)},
				{Name: "Pregnancy Test", Price: price(150), Range: text("Negative")},
			},
		},
		{
			Name: "SEROLOGY",
			Tests: []Test{
				{Name: "Dengue Test", Price: price(1200), Range: text("Negative")},
				{Name: "HBsAg Screening", Price: price(300), Range: text("Negative")},
				{Name: "Typhidot", Price: price(800), Range: text("Negative")},
				{Name: "RPR/VDRL", Price: price(300), Range: text("Non-reactive")},
			},
		},
		{
			Name: "MICROBIOLOGY",
			Tests: []Test{
				{Name: "Gram Stain", Price: price(250)},
				{Name: "Urine Culture", Price: price(800), Range: text("No growth")},
				{Name: "Blood Culture", Price: price(1500), Range: text("No growth")},
			},
		},
		{
			Name: "BLOOD BANK",
			Tests: []Test{
				{Name: "Blood Typing", Price: price(150)},
				{Name: "Crossmatching", Price: price(500), Range: text("Compatible")},
			},
		},
	}
}

// Default returns the built-in catalog.
func Default() *Static {
	c, err := New(DefaultSections(), DefaultRegistrationFee)
	if err != nil {
		panic("catalog: invalid built-in catalog: " + err.Error())
	}
	return c
}
