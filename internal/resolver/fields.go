package resolver

import "regexp"

// Champs cachés communs aux formulaires XFileSharing. L'ordre et le
// formatage exacts diffèrent par hébergeur; chaque variante divergente
// vit dans le fichier de son hébergeur.
var (
	reHiddenOp         = regexp.MustCompile(`<input type="hidden" name="op" value="(.+?)">`)
	reHiddenID         = regexp.MustCompile(`<input type="hidden" name="id" value="(.+?)">`)
	reHiddenRand       = regexp.MustCompile(`<input type="hidden" name="rand" value="(.+?)">`)
	reHiddenFname      = regexp.MustCompile(`<input type="hidden" name="fname" value="(.+?)">`)
	reHiddenUsrLogin   = regexp.MustCompile(`<input type="hidden" name="usr_login" value="(.*?)">`)
	reHiddenMethodFree = regexp.MustCompile(`<input type="hidden" name="method_free" value="(.+?)">`)
	reHiddenDownDirect = regexp.MustCompile(`<input type="hidden" name="down_direct" value="(.+?)">`)
)
