package voice

// 本地规则的固定回复
const (
	ReplyCancelled  = "De acuerdo, cancelado."
	ReplyNothing    = "Todavía no he dicho nada que pueda repetir."
	ReplyThemeDark  = "Tema oscuro activado"
	ReplyThemeLight = "Tema claro activado"
	ReplyHelp       = "Puedo ayudarte con: información de pólizas, reportar siniestros, " +
		"comparar seguros, consultar precios, y navegar por la aplicación. ¿En qué te ayudo?"
	ReplyNotHeard = "No te he escuchado. Inténtalo de nuevo."
)

type localKind int

const (
	localNone localKind = iota
	localRepeat
	localCancel
	localTheme
	localRoute
	localHelp
)

func (k localKind) String() string {
	switch k {
	case localRepeat:
		return "repeat"
	case localCancel:
		return "cancel"
	case localTheme:
		return "theme"
	case localRoute:
		return "route"
	case localHelp:
		return "help"
	default:
		return "none"
	}
}

// localMatch 本地规则匹配结果
type localMatch struct {
	kind  localKind
	theme Theme
	route NavigationRoute
}

// 控制命令：单词需整句相等，短语按子串匹配
var (
	repeatWords   = []string{"repite", "repitelo", "repetir", "repeat", "otra vez"}
	repeatPhrases = []string{"que dijiste", "repite lo ultimo", "repetir lo ultimo", "repeat last"}
	cancelWords   = []string{"cancela", "cancelar", "cancel", "basta"}
	cancelPhrases = []string{"olvidalo", "dejalo", "no importa", "never mind", "nevermind"}
	darkKeywords  = []string{"tema oscuro", "modo oscuro", "dark mode", "dark theme"}
	lightKeywords = []string{"tema claro", "modo claro", "light mode", "light theme"}
	helpKeywords  = []string{"ayuda", "que puedes hacer", "ayudame", "help"}
)

// resolveLocal applies the local rule table in order: control commands,
// theme toggle, navigation routes, help. normalized must come from Normalize.
func resolveLocal(normalized string, routes []compiledRoute) localMatch {
	switch {
	case normalized == "":
		return localMatch{}
	case equalsAny(normalized, repeatWords) || containsAny(normalized, repeatPhrases):
		return localMatch{kind: localRepeat}
	case equalsAny(normalized, cancelWords) || containsAny(normalized, cancelPhrases):
		return localMatch{kind: localCancel}
	case containsAny(normalized, darkKeywords):
		return localMatch{kind: localTheme, theme: ThemeDark}
	case containsAny(normalized, lightKeywords):
		return localMatch{kind: localTheme, theme: ThemeLight}
	}
	if route, ok := matchRoute(routes, normalized); ok {
		return localMatch{kind: localRoute, route: route}
	}
	if containsAny(normalized, helpKeywords) {
		return localMatch{kind: localHelp}
	}
	return localMatch{}
}
