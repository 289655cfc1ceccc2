package textract

import (
	"regexp"
	"strings"
)

// Administrative field patterns. First match wins, values are trimmed.
var keyValuePatterns = map[string]*regexp.Regexp{
	"patient_name":    regexp.MustCompile(`(?i)Patient Name[:\s]+([^\n]+)`),
	"patient_id":      regexp.MustCompile(`(?i)Patient ID[:\s]+([^\n]+)`),
	"patient_age":     regexp.MustCompile(`(?i)Age[:\s]+(\d+)`),
	"patient_gender":  regexp.MustCompile(`(?i)Gender[:\s]+([^\n]+)`),
	"date_of_service": regexp.MustCompile(`(?i)Date of Service[:\s]+([^\n]+)`),
	"diagnosis":       regexp.MustCompile(`(?i)Diagnosis[:\s]+([^\n]+)`),
	"procedure":       regexp.MustCompile(`(?i)Procedure[:\s]+([^\n]+)`),
	"total_charge":    regexp.MustCompile(`(?i)Total Charge[:\s]+\$?([\d,\.]+)`),
	"provider_name":   regexp.MustCompile(`(?i)Provider Name[:\s]+([^\n]+)`),
	"insurance_id":    regexp.MustCompile(`(?i)Insurance ID[:\s]+([^\n]+)`),
}

// ExtractKeyValuePairs pulls the fixed administrative fields out of the
// extracted text. Absent fields are simply omitted from the map.
func ExtractKeyValuePairs(text string) map[string]string {
	pairs := make(map[string]string)
	for field, pattern := range keyValuePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			pairs[field] = strings.TrimSpace(m[1])
		}
	}
	return pairs
}
