package rights

import "strings"

// ParseOptions reads the comma separated include list of a request
// (?include=financials,contract). "all" enables every sub-object.
func ParseOptions(includes []string) Options {
	var opts Options

	for _, raw := range includes {
		for _, part := range strings.Split(raw, ",") {
			switch strings.ToLower(strings.TrimSpace(part)) {
			case "all":
				return AllOptions()
			case "financials":
				opts.IncludeFinancials = true
			case "contract":
				opts.IncludeContract = true
			case "compliance":
				opts.IncludeCompliance = true
			case "territorialinfo", "territorial", "territory":
				opts.IncludeTerritorialInfo = true
			case "workflow":
				opts.IncludeWorkflow = true
			case "publication":
				opts.IncludePublication = true
			case "licensee":
				opts.IncludeLicensee = true
			case "transactions":
				opts.IncludeTransactions = true
			}
		}
	}

	return opts
}

// AllOptions includes every sub-object.
func AllOptions() Options {
	return Options{
		IncludeFinancials:      true,
		IncludeContract:        true,
		IncludeCompliance:      true,
		IncludeTerritorialInfo: true,
		IncludeWorkflow:        true,
		IncludePublication:     true,
		IncludeLicensee:        true,
		IncludeTransactions:    true,
	}
}
