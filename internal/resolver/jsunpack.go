package resolver

import (
	"regexp"
	"strconv"
	"strings"
)

// Dépacke le format p.a.c.k.e.r de Dean Edwards utilisé par les players
// embarqués: eval(function(p,a,c,k,e,d){...}('payload',base,count,
// 'w0|w1|...'.split('|'),0,{})). Chaque token base-N du payload est
// remplacé par le mot de même index quand il est non vide.
var rePacked = regexp.MustCompile(`(?s)}\s*\(\s*'(.*)'\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*'(.*?)'\s*\.split\('\|'\)`)

func Unpack(script string) (string, bool) {
	m := rePacked.FindStringSubmatch(script)
	if m == nil {
		return "", false
	}
	payload := strings.ReplaceAll(m[1], `\'`, `'`)
	radix, err := strconv.Atoi(m[2])
	if err != nil || radix < 2 || radix > 36 {
		return "", false
	}
	count, err := strconv.Atoi(m[3])
	if err != nil {
		return "", false
	}
	words := strings.Split(m[4], "|")
	if len(words) < count {
		count = len(words)
	}

	reToken := regexp.MustCompile(`\b\w+\b`)
	out := reToken.ReplaceAllStringFunc(payload, func(tok string) string {
		n, err := strconv.ParseInt(tok, radix, 64)
		if err != nil || n < 0 || int(n) >= count {
			return tok
		}
		if w := words[n]; w != "" {
			return w
		}
		return tok
	})
	return out, true
}
