package flow

import (
	"regexp"
	"strings"
)

// Input tokens. Portuguese aliases from the original deployment are kept so
// existing customers are not stranded.
var (
	greetings = tokenSet("hi", "hello", "hey", "start", "oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "começar", "opa")
	backWords = tokenSet("back", "voltar")
	yesWords  = tokenSet("yes", "y", "sim", "s")
	noWords   = tokenSet("no", "n", "não", "nao")
	cancels   = tokenSet("cancel", "cancelar")
	viewCart  = tokenSet("view cart", "cart", "my cart", "ver carrinho", "meu carrinho", "carrinho")
	finalize  = tokenSet("finalize", "finalize order", "checkout", "finalizar", "finalizar pedido", "agendar")
	reports   = tokenSet("send report", "mandar custo")
	noExtras  = tokenSet("none", "no", "n/a", "no complement", "nao tenho", "não tenho", "sem complemento", "nao", "não")

	addPrefixes    = []string{"add ", "carrinho "}
	removePrefixes = []string{"remove ", "remover "}
	bookPrefixes   = []string{"book ", "marcar "}
)

var nonDigits = regexp.MustCompile(`\D`)

type tokens map[string]struct{}

func tokenSet(words ...string) tokens {
	t := make(tokens, len(words))
	for _, w := range words {
		t[w] = struct{}{}
	}
	return t
}

func (t tokens) has(word string) bool {
	_, ok := t[word]
	return ok
}

// input is one message in the forms the handlers match on.
type input struct {
	raw   string
	lower string
}

func newInput(text string) input {
	raw := strings.Join(strings.Fields(text), " ")
	return input{raw: raw, lower: strings.ToLower(raw)}
}

func (in input) is(t tokens) bool {
	return t.has(in.lower)
}

// argsAfter returns the remainder of the message when it starts with one of
// the prefixes.
func (in input) argsAfter(prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(in.lower, p) {
			return strings.TrimSpace(in.raw[len(p):]), true
		}
	}
	return "", false
}

func digitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

func formatTaxID(d string) string {
	if len(d) != 11 {
		return d
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}
