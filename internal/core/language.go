package core

import (
	"path/filepath"
	"strings"
)

// CodeLanguage is the language of a reviewed or ingested file.
type CodeLanguage string

const (
	LanguagePython     CodeLanguage = "python"
	LanguageJavaScript CodeLanguage = "javascript"
	LanguageTypeScript CodeLanguage = "typescript"
	LanguageJava       CodeLanguage = "java"
	LanguageGo         CodeLanguage = "go"
	LanguageRust       CodeLanguage = "rust"
	LanguageOther      CodeLanguage = "other"
)

var extensionLanguages = map[string]CodeLanguage{
	".py":   LanguagePython,
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".java": LanguageJava,
	".go":   LanguageGo,
	".rs":   LanguageRust,
}

// LanguageFromPath infers the language of a file from its extension.
func LanguageFromPath(path string) CodeLanguage {
	if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LanguageOther
}

// Valid reports whether l is a recognized language value.
func (l CodeLanguage) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageJava, LanguageGo, LanguageRust, LanguageOther:
		return true
	}
	return false
}
