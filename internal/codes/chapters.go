package codes

// Chapter describes one ICD-10-CM chapter code range
type Chapter struct {
	ID    int
	Name  string
	Start string
	End   string
}

// ICD10Chapters lists the official 21 ICD-10-CM chapters plus the
// special-purpose U-code chapter.
var ICD10Chapters = []Chapter{
	{1, "Certain infectious and parasitic diseases", "A00", "B99"},
	{2, "Neoplasms", "C00", "D49"},
	{3, "Diseases of the blood and blood-forming organs", "D50", "D89"},
	{4, "Endocrine, nutritional and metabolic diseases", "E00", "E89"},
	{5, "Mental, behavioral and neurodevelopmental disorders", "F01", "F99"},
	{6, "Diseases of the nervous system", "G00", "G99"},
	{7, "Diseases of the eye and adnexa", "H00", "H59"},
	{8, "Diseases of the ear and mastoid process", "H60", "H95"},
	{9, "Diseases of the circulatory system", "I00", "I99"},
	{10, "Diseases of the respiratory system", "J00", "J99"},
	{11, "Diseases of the digestive system", "K00", "K95"},
	{12, "Diseases of the skin and subcutaneous tissue", "L00", "L99"},
	{13, "Diseases of the musculoskeletal system and connective tissue", "M00", "M99"},
	{14, "Diseases of the genitourinary system", "N00", "N99"},
	{15, "Pregnancy, childbirth and the puerperium", "O00", "O9A"},
	{16, "Certain conditions originating in the perinatal period", "P00", "P96"},
	{17, "Congenital malformations, deformations and chromosomal abnormalities", "Q00", "Q99"},
	{18, "Symptoms, signs and abnormal clinical and laboratory findings, not elsewhere classified", "R00", "R99"},
	{19, "Injury, poisoning and certain other consequences of external causes", "S00", "T88"},
	{20, "External causes of morbidity", "V00", "Y99"},
	{21, "Factors influencing health status and contact with health services", "Z00", "Z99"},
	{22, "Codes for special purposes", "U00", "U85"},
}

// ChapterFor returns the chapter containing the given ICD-10 code, matching
// on the 3-character category lexicographically. Returns nil when the code
// falls outside every chapter range.
func ChapterFor(code string) *Chapter {
	if len(code) < 3 {
		return nil
	}
	c3 := code[:3]
	for i := range ICD10Chapters {
		ch := &ICD10Chapters[i]
		if ch.Start <= c3 && c3 <= ch.End {
			return ch
		}
	}
	return nil
}
