package model

import "strings"

type Category string

const (
	CategoryCITesting   Category = "CI / Testing"
	CategoryBuildDeploy Category = "Build / Deploy"
	CategoryQuality     Category = "Code Quality / Security"
	CategoryOther       Category = "Other"
)

var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryCITesting, []string{"ci", "nightly", "test"}},
	{CategoryBuildDeploy, []string{"build", "upload", "deploy", "release"}},
	{CategoryQuality, []string{"lint", "codeql", "scorecard", "dependency", "validate"}},
}

// Categorize maps a workflow display name to a category. Keywords are matched
// as case-insensitive substrings and the first matching category wins.
func Categorize(name string) Category {
	lower := strings.ToLower(name)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// Categories returns all categories in precedence order.
func Categories() []Category {
	return []Category{CategoryCITesting, CategoryBuildDeploy, CategoryQuality, CategoryOther}
}
