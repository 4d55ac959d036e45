package analysis

import (
	"path/filepath"
	"regexp"
	"strings"
)

var extensionLanguages = map[string]Language{
	".go":   LanguageGo,
	".py":   LanguagePython,
	".pyw":  LanguagePython,
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".cjs":  LanguageJavaScript,
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".java": LanguageJava,
	".html": LanguageHTML,
	".htm":  LanguageHTML,
}

// SupportedExtensions returns the file extensions DetectLanguage maps to a
// specific language.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		exts = append(exts, ext)
	}
	return exts
}

// ParseLanguage converts a user-supplied language name. Common aliases are
// accepted.
func ParseLanguage(name string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "go", "golang":
		return LanguageGo, true
	case "python", "py":
		return LanguagePython, true
	case "javascript", "js", "jsx", "node":
		return LanguageJavaScript, true
	case "typescript", "ts", "tsx":
		return LanguageTypeScript, true
	case "java":
		return LanguageJava, true
	case "html", "htm":
		return LanguageHTML, true
	case "generic", "text", "plain":
		return LanguageGeneric, true
	default:
		return "", false
	}
}

var (
	goPackageRe   = regexp.MustCompile(`(?m)^package\s+\w+`)
	goFuncRe      = regexp.MustCompile(`(?m)^func\s`)
	pyDefRe       = regexp.MustCompile(`(?m)^\s*(?:async\s+)?(?:def|class)\s+\w+.*:\s*$`)
	pyImportRe    = regexp.MustCompile(`(?m)^(?:from\s+[\w.]+\s+)?import\s+[\w., ]+$`)
	htmlRe        = regexp.MustCompile(`(?i)<!doctype\s+html|<html[\s>]`)
	javaClassRe   = regexp.MustCompile(`(?m)^\s*public\s+(?:final\s+|abstract\s+)?(?:class|interface|enum)\s+\w+`)
	tsAnnotatedRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:interface|type)\s+\w+\s*[={<]|:\s*(?:string|number|boolean|void|any|unknown)\b`)
	jsRe          = regexp.MustCompile(`(?m)\bfunction\s*\w*\s*\(|^\s*(?:const|let|var)\s+\w+\s*=|=>|\brequire\(`)
)

// DetectLanguage picks a language from the file extension first and falls
// back to content heuristics. It never fails: unrecognised input is
// LanguageGeneric.
func DetectLanguage(filename, text string) Language {
	if filename != "" {
		if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(filename))]; ok {
			return lang
		}
	}

	switch {
	case goPackageRe.MatchString(text) && goFuncRe.MatchString(text):
		return LanguageGo
	case htmlRe.MatchString(text):
		return LanguageHTML
	case javaClassRe.MatchString(text):
		return LanguageJava
	case pyDefRe.MatchString(text) && !strings.Contains(text, "{"):
		return LanguagePython
	case pyImportRe.MatchString(text) && !strings.Contains(text, ";"):
		return LanguagePython
	case tsAnnotatedRe.MatchString(text):
		return LanguageTypeScript
	case jsRe.MatchString(text):
		return LanguageJavaScript
	default:
		return LanguageGeneric
	}
}
