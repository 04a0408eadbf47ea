package chapters

import "strings"

// ParseOptions reads the comma separated include list of a request
// (?include=content,keywords). "all" enables every sub-object.
func ParseOptions(includes []string) Options {
	var opts Options

	for _, raw := range includes {
		for _, part := range strings.Split(raw, ",") {
			switch strings.ToLower(strings.TrimSpace(part)) {
			case "all":
				return AllOptions()
			case "content":
				opts.IncludeContent = true
			case "contentanalysis", "analysis":
				opts.IncludeContentAnalysis = true
			case "keywords":
				opts.IncludeKeywords = true
			case "metadata":
				opts.IncludeMetadata = true
			case "collaboration":
				opts.IncludeCollaboration = true
			case "versioning", "versions":
				opts.IncludeVersioning = true
			case "publication":
				opts.IncludePublication = true
			case "comments":
				opts.IncludeComments = true
			case "revisions":
				opts.IncludeRevisions = true
			}
		}
	}

	return opts
}

// AllOptions includes every sub-object with default reading statistics.
func AllOptions() Options {
	return Options{
		IncludeContent:         true,
		IncludeContentAnalysis: true,
		IncludeKeywords:        true,
		IncludeMetadata:        true,
		IncludeCollaboration:   true,
		IncludeVersioning:      true,
		IncludePublication:     true,
		IncludeComments:        true,
		IncludeRevisions:       true,
	}
}
