package symptom

// defaultTokens is the canonical symptom vocabulary. Order is load-bearing:
// feature schemas derive flag positions from it, so appending is safe but
// reordering requires a schema version bump.
var defaultTokens = []string{
	"fever",
	"headache",
	"cough",
	"cold",
	"pain",
	"infection",
	"diabetes",
	"hypertension",
	"allergy",
	"acidity",
	"diarrhea",
	"constipation",
	"vomiting",
	"nausea",
	"anxiety",
	"depression",
	"insomnia",
	"asthma",
	"arthritis",
	"migraine",
	"rash",
	"acne",
	"wound",
	"burn",
	"ulcer",
	"inflammation",
}

// defaultAliases maps colloquial phrasings onto canonical tokens. Multi-word
// aliases are matched before single tokens by the normalizer.
var defaultAliases = map[string]string{
	"temperature":         "fever",
	"high temperature":    "fever",
	"flu":                 "cold",
	"runny nose":          "cold",
	"sore throat":         "cold",
	"coughing":            "cough",
	"head ache":           "headache",
	"body ache":           "pain",
	"ache":                "pain",
	"aches":               "pain",
	"sugar":               "diabetes",
	"high blood pressure": "hypertension",
	"bp":                  "hypertension",
	"loose motion":        "diarrhea",
	"loose motions":       "diarrhea",
	"throwing up":         "vomiting",
	"heartburn":           "acidity",
	"acid reflux":         "acidity",
	"sleeplessness":       "insomnia",
	"stress":              "anxiety",
	"joint pain":          "arthritis",
	"pimples":             "acne",
	"skin rash":           "rash",
	"swelling":            "inflammation",
}

// Default returns the built-in vocabulary.
func Default() Vocabulary {
	v, err := New(defaultTokens, defaultAliases)
	if err != nil {
		// The built-in tables are covered by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return v
}
