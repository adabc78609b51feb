package voice

// 远程分类失败时的兜底回复
const (
	FallbackPrice   = "Para consultar precios, dime qué tipo de seguro te interesa o abre el comparador de seguros."
	FallbackPolicy  = "Puedes consultar tus pólizas desde el panel principal, en la sección de pólizas."
	FallbackClaim   = "Para reportar un siniestro, entra en la sección de siniestros o llama a nuestra línea de atención."
	FallbackGeneric = "Lo siento, no pude procesar tu comando. ¿Puedes repetirlo?"
)

type fallbackRule struct {
	name     string
	triggers []string
	reply    string
}

var fallbackTable = []fallbackRule{
	{name: "price", triggers: []string{"precio", "cuesta", "cuanto", "tarifa", "coste", "costo"}, reply: FallbackPrice},
	{name: "policy", triggers: []string{"poliza", "cobertura"}, reply: FallbackPolicy},
	{name: "claim", triggers: []string{"siniestro", "accidente", "dar parte", "reclamacion"}, reply: FallbackClaim},
}

// fallbackReply picks the canned reply for a normalized transcript.
func fallbackReply(normalized string) (name, reply string) {
	for _, rule := range fallbackTable {
		if containsAny(normalized, rule.triggers) {
			return rule.name, rule.reply
		}
	}
	return "generic", FallbackGeneric
}
