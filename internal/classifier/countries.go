package classifier

import (
	"regexp"
	"slices"
	"strings"
)

// countryPattern pairs a country with the whole-word alternation of its
// common names and abbreviations
type countryPattern struct {
	country string
	re      *regexp.Regexp
}

// countryTable is ordered: the first matching entry wins, so ambiguous
// text naming several countries resolves to the earliest one.
var countryTable = []countryPattern{
	{"United States", regexp.MustCompile(`(?i)\b(USA?|United States|US|U\.S\.A?|America)\b`)},
	{"India", regexp.MustCompile(`(?i)\b(India|IND?|Bharat)\b`)},
	{"United Kingdom", regexp.MustCompile(`(?i)\b(UK|United Kingdom|U\.K\.|Great Britain|GB|England|Scotland|Wales)\b`)},
	{"Canada", regexp.MustCompile(`(?i)\b(Canada|CAN?)\b`)},
	{"Australia", regexp.MustCompile(`(?i)\b(Australia|AUS?)\b`)},
	{"Germany", regexp.MustCompile(`(?i)\b(Germany|GER?|Deutschland)\b`)},
	{"France", regexp.MustCompile(`(?i)\b(France|FRA?)\b`)},
	{"Japan", regexp.MustCompile(`(?i)\b(Japan|JPN?|Nippon)\b`)},
	{"Brazil", regexp.MustCompile(`(?i)\b(Brazil|BRA?)\b`)},
	{"Mexico", regexp.MustCompile(`(?i)\b(Mexico|MEX?)\b`)},
	{"Philippines", regexp.MustCompile(`(?i)\b(Philippines|PH|PHL?)\b`)},
	{"Indonesia", regexp.MustCompile(`(?i)\b(Indonesia|IDN?)\b`)},
	{"Pakistan", regexp.MustCompile(`(?i)\b(Pakistan|PAK?)\b`)},
	{"Nigeria", regexp.MustCompile(`(?i)\b(Nigeria|NGA?)\b`)},
	{"Russia", regexp.MustCompile(`(?i)\b(Russia|RUS?|Russian)\b`)},
	{"China", regexp.MustCompile(`(?i)\b(China|CHN?|Chinese)\b`)},
}

// CanonicalCountries is the closed set of names the classifier may return.
var CanonicalCountries = []string{
	"United States", "India", "United Kingdom", "Canada", "Australia",
	"Germany", "France", "Japan", "Brazil", "Mexico",
	"Philippines", "Indonesia", "Pakistan", "Nigeria", "Russia", "China",
}

// IsCanonical reports whether name is in CanonicalCountries.
func IsCanonical(name string) bool {
	return slices.Contains(CanonicalCountries, name)
}

// catalog is the list offered to users for blocking, grouped by region.
// It is broader than what the classifier can recognize.
var catalog = []string{
	// North America
	"United States", "Canada", "Mexico", "Guatemala", "Honduras",
	"El Salvador", "Nicaragua", "Costa Rica", "Panama", "Belize",
	"Bahamas", "Cuba", "Jamaica", "Haiti", "Dominican Republic",
	"Puerto Rico", "Trinidad and Tobago", "Barbados", "Saint Lucia",
	"Grenada", "Saint Vincent and the Grenadines", "Antigua and Barbuda",
	"Dominica",

	// South America
	"Brazil", "Argentina", "Colombia", "Peru", "Venezuela",
	"Chile", "Ecuador", "Bolivia", "Paraguay", "Uruguay",
	"Guyana", "Suriname",

	// Europe
	"United Kingdom", "Germany", "France", "Italy", "Spain",
	"Portugal", "Netherlands", "Belgium", "Switzerland", "Austria",
	"Sweden", "Norway", "Denmark", "Finland", "Ireland",
	"Poland", "Czech Republic", "Slovakia", "Hungary", "Romania",
	"Bulgaria", "Greece", "Croatia", "Serbia", "Slovenia",
	"Bosnia and Herzegovina", "Albania", "Montenegro", "North Macedonia", "Kosovo",
	"Estonia", "Latvia", "Lithuania", "Ukraine", "Belarus",
	"Moldova", "Russia", "Iceland", "Luxembourg", "Malta",
	"Cyprus", "Monaco", "San Marino", "Liechtenstein",

	// Asia
	"India", "China", "Japan", "South Korea", "North Korea",
	"Vietnam", "Thailand", "Philippines", "Indonesia", "Malaysia",
	"Singapore", "Myanmar", "Cambodia", "Laos", "Bangladesh",
	"Pakistan", "Sri Lanka", "Nepal", "Bhutan", "Maldives",
	"Afghanistan", "Iran", "Iraq", "Saudi Arabia", "United Arab Emirates",
	"Qatar", "Kuwait", "Oman", "Bahrain", "Yemen",
	"Syria", "Jordan", "Lebanon", "Israel", "Palestine",
	"Turkey", "Armenia", "Azerbaijan", "Georgia", "Kazakhstan",
	"Uzbekistan", "Turkmenistan", "Kyrgyzstan", "Tajikistan",
	"Mongolia", "Taiwan", "Hong Kong", "Macau",

	// Africa
	"Nigeria", "Egypt", "South Africa", "Ethiopia", "Kenya",
	"Tanzania", "Uganda", "Ghana", "Democratic Republic of Congo", "Ivory Coast",
	"Algeria", "Morocco", "Sudan", "Angola", "Mozambique",
	"Madagascar", "Cameroon", "Niger", "Mali", "Burkina Faso",
	"Malawi", "Zambia", "Senegal", "Chad", "Somalia",
	"Zimbabwe", "Rwanda", "Tunisia", "Benin", "Burundi",
	"South Sudan", "Togo", "Eritrea", "Sierra Leone", "Libya",
	"Central African Republic", "Liberia", "Mauritania", "Namibia", "Botswana",
	"Lesotho", "Gambia", "Gabon", "Guinea", "Guinea-Bissau",
	"Mauritius", "Eswatini", "Djibouti", "Comoros", "Cape Verde",
	"Seychelles", "São Tomé and Príncipe", "Western Sahara", "Republic of Congo",

	// Oceania
	"Australia", "New Zealand", "Papua New Guinea", "Fiji", "Solomon Islands",
	"Vanuatu", "Samoa", "Kiribati", "Micronesia", "Tonga",
	"Marshall Islands", "Palau", "Nauru", "Tuvalu",

	// Caribbean territories
	"Saint Kitts and Nevis", "Curaçao", "Aruba", "Cayman Islands",
	"Bermuda", "Greenland", "French Guiana", "Guadeloupe", "Martinique",
	"U.S. Virgin Islands", "British Virgin Islands", "Anguilla", "Montserrat",
}

// Catalog returns a copy of the blockable country list.
func Catalog() []string {
	return slices.Clone(catalog)
}

// InCatalog reports whether name may be used as a blockedCountries key.
func InCatalog(name string) bool {
	return slices.Contains(catalog, name)
}

// SearchCatalog returns catalog entries containing query, case-insensitively.
// An empty query returns the whole catalog.
func SearchCatalog(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return Catalog()
	}

	var out []string
	for _, name := range catalog {
		if strings.Contains(strings.ToLower(name), query) {
			out = append(out, name)
		}
	}
	return out
}
