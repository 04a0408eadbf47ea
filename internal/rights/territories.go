package rights

import (
	"strings"

	"golang.org/x/text/language"
)

const unknownRegion = "Unknown"

// TerritoryInfo describes a licensing territory.
type TerritoryInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// LanguageInfo describes a content language.
type LanguageInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
}

var territories = map[string]TerritoryInfo{ //nolint:gochecknoglobals
	"WORLD": {Code: "WORLD", Name: "Worldwide", Region: "Global"},
	"EU":    {Code: "EU", Name: "European Union", Region: "Europe"},
	"US":    {Code: "US", Name: "United States", Region: "North America"},
	"CA":    {Code: "CA", Name: "Canada", Region: "North America"},
	"MX":    {Code: "MX", Name: "Mexico", Region: "North America"},
	"BR":    {Code: "BR", Name: "Brazil", Region: "South America"},
	"AR":    {Code: "AR", Name: "Argentina", Region: "South America"},
	"GB":    {Code: "GB", Name: "United Kingdom", Region: "Europe"},
	"IE":    {Code: "IE", Name: "Ireland", Region: "Europe"},
	"DE":    {Code: "DE", Name: "Germany", Region: "Europe"},
	"FR":    {Code: "FR", Name: "France", Region: "Europe"},
	"ES":    {Code: "ES", Name: "Spain", Region: "Europe"},
	"IT":    {Code: "IT", Name: "Italy", Region: "Europe"},
	"NL":    {Code: "NL", Name: "Netherlands", Region: "Europe"},
	"SE":    {Code: "SE", Name: "Sweden", Region: "Europe"},
	"NO":    {Code: "NO", Name: "Norway", Region: "Europe"},
	"PL":    {Code: "PL", Name: "Poland", Region: "Europe"},
	"JP":    {Code: "JP", Name: "Japan", Region: "Asia Pacific"},
	"KR":    {Code: "KR", Name: "South Korea", Region: "Asia Pacific"},
	"CN":    {Code: "CN", Name: "China", Region: "Asia Pacific"},
	"IN":    {Code: "IN", Name: "India", Region: "Asia Pacific"},
	"AU":    {Code: "AU", Name: "Australia", Region: "Asia Pacific"},
	"NZ":    {Code: "NZ", Name: "New Zealand", Region: "Asia Pacific"},
	"ZA":    {Code: "ZA", Name: "South Africa", Region: "Africa"},
	"NG":    {Code: "NG", Name: "Nigeria", Region: "Africa"},
}

var languages = map[string]LanguageInfo{ //nolint:gochecknoglobals
	"en": {Code: "en", Name: "English", NativeName: "English"},
	"es": {Code: "es", Name: "Spanish", NativeName: "Español"},
	"fr": {Code: "fr", Name: "French", NativeName: "Français"},
	"de": {Code: "de", Name: "German", NativeName: "Deutsch"},
	"it": {Code: "it", Name: "Italian", NativeName: "Italiano"},
	"pt": {Code: "pt", Name: "Portuguese", NativeName: "Português"},
	"nl": {Code: "nl", Name: "Dutch", NativeName: "Nederlands"},
	"sv": {Code: "sv", Name: "Swedish", NativeName: "Svenska"},
	"pl": {Code: "pl", Name: "Polish", NativeName: "Polski"},
	"ja": {Code: "ja", Name: "Japanese", NativeName: "日本語"},
	"ko": {Code: "ko", Name: "Korean", NativeName: "한국어"},
	"zh": {Code: "zh", Name: "Chinese", NativeName: "中文"},
	"hi": {Code: "hi", Name: "Hindi", NativeName: "हिन्दी"},
}

// LookupTerritory returns metadata for a territory code. Unknown codes echo the
// code as the name with region "Unknown".
func LookupTerritory(code string) TerritoryInfo {
	normalized := NormalizeTerritory(code)
	if info, ok := territories[normalized]; ok {
		return info
	}

	return TerritoryInfo{Code: code, Name: code, Region: unknownRegion}
}

// LookupLanguage returns metadata for a language code or BCP 47 tag ("en-US" resolves
// to English). Unknown codes echo the code as the name.
func LookupLanguage(code string) LanguageInfo {
	if info, ok := languages[NormalizeLanguage(code)]; ok {
		return info
	}

	return LanguageInfo{Code: code, Name: code, NativeName: code}
}

// NormalizeTerritory upper-cases and trims a territory code.
func NormalizeTerritory(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeLanguage reduces a language tag to its base ISO 639 code. Values that are
// not valid tags are lower-cased and returned as is.
func NormalizeLanguage(code string) string {
	trimmed := strings.TrimSpace(code)

	tag, err := language.Parse(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}

	base, confidence := tag.Base()
	if confidence == language.No {
		return strings.ToLower(trimmed)
	}

	return base.String()
}
