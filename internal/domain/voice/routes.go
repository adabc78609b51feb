package voice

// NavigationRoute is one entry of the ordered local navigation table.
type NavigationRoute struct {
	Name         string   `json:"name"`
	Keywords     []string `json:"keywords"`
	TargetURL    string   `json:"target_url"`
	Confirmation string   `json:"confirmation"`
}

// DefaultRoutes 客户区导航表，按顺序匹配
func DefaultRoutes() []NavigationRoute {
	return []NavigationRoute{
		{
			Name:         "dashboard",
			Keywords:     []string{"dashboard", "inicio", "panel principal"},
			TargetURL:    "/cliente/dashboard",
			Confirmation: "Abriendo el panel principal",
		},
		{
			Name:         "analytics",
			Keywords:     []string{"analíticas", "analitica", "estadísticas", "análisis"},
			TargetURL:    "/cliente/analytics",
			Confirmation: "Abriendo el análisis",
		},
		{
			Name:         "comparator",
			Keywords:     []string{"comparador", "comparar"},
			TargetURL:    "/cliente/comparador",
			Confirmation: "Abriendo el comparador de seguros",
		},
		{
			Name:         "cart",
			Keywords:     []string{"carrito"},
			TargetURL:    "/cliente/carrito",
			Confirmation: "Abriendo el carrito de compra",
		},
		{
			Name:         "settings",
			Keywords:     []string{"configuración", "ajustes"},
			TargetURL:    "/cliente/configuracion",
			Confirmation: "Abriendo la configuración",
		},
	}
}

// compiledRoute holds keywords already folded for matching.
type compiledRoute struct {
	route    NavigationRoute
	keywords []string
}

func compileRoutes(routes []NavigationRoute) []compiledRoute {
	out := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		c := compiledRoute{route: r}
		for _, kw := range r.Keywords {
			if folded := Normalize(kw); folded != "" {
				c.keywords = append(c.keywords, folded)
			}
		}
		if len(c.keywords) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func matchRoute(routes []compiledRoute, normalized string) (NavigationRoute, bool) {
	for _, r := range routes {
		if containsAny(normalized, r.keywords) {
			return r.route, true
		}
	}
	return NavigationRoute{}, false
}
