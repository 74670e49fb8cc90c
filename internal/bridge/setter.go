package bridge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type setterKind int

const (
	setterCallback setterKind = iota
	setterLoaderStart
	setterLoadError
	setterUnmatched
)

// Reserved setter names.
const (
	SetterOnLoaderStart              = "setOnLoaderStart"
	SetterOnLoadError                = "setOnLoadError"
	setterFinancialConnectionsResult = "setCollectMobileFinancialConnectionsResult"
)

var reservedSetters = map[string]setterKind{
	SetterOnLoaderStart: setterLoaderStart,
	SetterOnLoadError:   setterLoadError,
}

// resolveSetter classifies setter and, for the callback kind, returns the
// callback key.
func resolveSetter(setter string) (setterKind, string) {
	if k, ok := reservedSetters[setter]; ok {
		return k, ""
	}
	name, ok := CallbackName(setter)
	if !ok {
		return setterUnmatched, ""
	}
	return setterCallback, name
}

// CallbackName strips the "set" prefix and lower-cases the next letter:
// setOnClose becomes onClose. ok is false when setter has no such prefix.
func CallbackName(setter string) (name string, ok bool) {
	rest, found := strings.CutPrefix(setter, "set")
	if !found || rest == "" {
		return "", false
	}
	r, size := utf8.DecodeRuneInString(rest)
	return string(unicode.ToLower(r)) + rest[size:], true
}
