package mail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/goliatone/go-fulfillment/core"
)

// messageSet holds the per-locale strings for outbound mail and for the
// user-facing token failure screens. Locales missing an entry fall back to
// English.
type messageSet struct {
	purchaseSubject string
	purchaseBody    string
	tokenErrors     map[string]string
}

var messageSets = map[string]messageSet{
	"en": {
		purchaseSubject: "Your books are ready",
		purchaseBody: `Hello {{.Name}},

Thank you for your purchase. The following {{if gt (len .Books) 1}}books are{{else}}book is{{end}} now in your library:
{{range .Books}}  - {{.Title}}: {{.ReaderURL}}
{{end}}
Open your library with this link:
{{.AuthLink}}

The link signs you in directly. If you did not make this purchase, you can ignore this message.
`,
		tokenErrors: map[string]string{
			core.ErrorTokenRequired:        "This link is missing its access token. Please use the link from your e-mail.",
			core.ErrorInvalidToken:         "This link is no longer valid. Please request a new one.",
			core.ErrorInvalidPayload:       "This link is damaged. Please request a new one.",
			core.ErrorInvalidTimestamp:     "This link is damaged. Please request a new one.",
			core.ErrorBookIDsInvalid:       "This link is damaged. Please request a new one.",
			core.ErrorEmailMissing:         "This link is damaged. Please request a new one.",
			core.ErrorResetTokenExpired:    "This link has expired. Please request a new one.",
			core.ErrorEmailTokenMismatch:   "This link belongs to a different account.",
			core.ErrorPendingResetNotFound: "There is no pending request for this link. Please request a new one.",
		},
	},
	"de": {
		purchaseSubject: "Ihre Bücher sind bereit",
		purchaseBody: `Hallo {{.Name}},

vielen Dank für Ihren Einkauf. {{if gt (len .Books) 1}}Folgende Bücher sind{{else}}Folgendes Buch ist{{end}} jetzt in Ihrer Bibliothek:
{{range .Books}}  - {{.Title}}: {{.ReaderURL}}
{{end}}
Öffnen Sie Ihre Bibliothek mit diesem Link:
{{.AuthLink}}

Der Link meldet Sie direkt an. Wenn Sie diesen Einkauf nicht getätigt haben, können Sie diese Nachricht ignorieren.
`,
		tokenErrors: map[string]string{
			core.ErrorTokenRequired:        "Diesem Link fehlt das Zugriffstoken. Bitte verwenden Sie den Link aus Ihrer E-Mail.",
			core.ErrorInvalidToken:         "Dieser Link ist nicht mehr gültig. Bitte fordern Sie einen neuen an.",
			core.ErrorInvalidPayload:       "Dieser Link ist beschädigt. Bitte fordern Sie einen neuen an.",
			core.ErrorInvalidTimestamp:     "Dieser Link ist beschädigt. Bitte fordern Sie einen neuen an.",
			core.ErrorBookIDsInvalid:       "Dieser Link ist beschädigt. Bitte fordern Sie einen neuen an.",
			core.ErrorEmailMissing:         "Dieser Link ist beschädigt. Bitte fordern Sie einen neuen an.",
			core.ErrorResetTokenExpired:    "Dieser Link ist abgelaufen. Bitte fordern Sie einen neuen an.",
			core.ErrorEmailTokenMismatch:   "Dieser Link gehört zu einem anderen Konto.",
			core.ErrorPendingResetNotFound: "Für diesen Link liegt keine offene Anfrage vor. Bitte fordern Sie einen neuen an.",
		},
	},
	"fr": {
		purchaseSubject: "Vos livres sont prêts",
		purchaseBody: `Bonjour {{.Name}},

Merci pour votre achat. {{if gt (len .Books) 1}}Les livres suivants sont{{else}}Le livre suivant est{{end}} maintenant dans votre bibliothèque :
{{range .Books}}  - {{.Title}} : {{.ReaderURL}}
{{end}}
Ouvrez votre bibliothèque avec ce lien :
{{.AuthLink}}

Ce lien vous connecte directement. Si vous n'avez pas effectué cet achat, vous pouvez ignorer ce message.
`,
		tokenErrors: map[string]string{
			core.ErrorTokenRequired:        "Ce lien ne contient pas de jeton d'accès. Veuillez utiliser le lien de votre e-mail.",
			core.ErrorInvalidToken:         "Ce lien n'est plus valide. Veuillez en demander un nouveau.",
			core.ErrorInvalidPayload:       "Ce lien est endommagé. Veuillez en demander un nouveau.",
			core.ErrorInvalidTimestamp:     "Ce lien est endommagé. Veuillez en demander un nouveau.",
			core.ErrorBookIDsInvalid:       "Ce lien est endommagé. Veuillez en demander un nouveau.",
			core.ErrorEmailMissing:         "Ce lien est endommagé. Veuillez en demander un nouveau.",
			core.ErrorResetTokenExpired:    "Ce lien a expiré. Veuillez en demander un nouveau.",
			core.ErrorEmailTokenMismatch:   "Ce lien appartient à un autre compte.",
			core.ErrorPendingResetNotFound: "Aucune demande en attente pour ce lien. Veuillez en demander un nouveau.",
		},
	},
	"es": {
		purchaseSubject: "Sus libros están listos",
		purchaseBody: `Hola {{.Name}}:

Gracias por su compra. {{if gt (len .Books) 1}}Los siguientes libros están{{else}}El siguiente libro está{{end}} ahora en su biblioteca:
{{range .Books}}  - {{.Title}}: {{.ReaderURL}}
{{end}}
Abra su biblioteca con este enlace:
{{.AuthLink}}

El enlace inicia su sesión directamente. Si usted no realizó esta compra, puede ignorar este mensaje.
`,
		tokenErrors: map[string]string{
			core.ErrorTokenRequired:        "A este enlace le falta el token de acceso. Utilice el enlace de su correo.",
			core.ErrorInvalidToken:         "Este enlace ya no es válido. Solicite uno nuevo.",
			core.ErrorInvalidPayload:       "Este enlace está dañado. Solicite uno nuevo.",
			core.ErrorInvalidTimestamp:     "Este enlace está dañado. Solicite uno nuevo.",
			core.ErrorBookIDsInvalid:       "Este enlace está dañado. Solicite uno nuevo.",
			core.ErrorEmailMissing:         "Este enlace está dañado. Solicite uno nuevo.",
			core.ErrorResetTokenExpired:    "Este enlace ha caducado. Solicite uno nuevo.",
			core.ErrorEmailTokenMismatch:   "Este enlace pertenece a otra cuenta.",
			core.ErrorPendingResetNotFound: "No hay ninguna solicitud pendiente para este enlace. Solicite uno nuevo.",
		},
	},
}

// Renderer turns notifications into localized subject/body pairs.
type Renderer struct {
	supported []string
	fallback  string
}

func NewRenderer(supportedLocales []string) *Renderer {
	supported := make([]string, 0, len(supportedLocales))
	for _, locale := range supportedLocales {
		locale = strings.ToLower(strings.TrimSpace(locale))
		if locale == "" {
			continue
		}
		if _, ok := messageSets[locale]; ok {
			supported = append(supported, locale)
		}
	}
	if len(supported) == 0 {
		supported = []string{"en"}
	}
	return &Renderer{supported: supported, fallback: "en"}
}

// Locale resolves the best supported locale for the candidates.
func (r *Renderer) Locale(candidates ...string) string {
	if r == nil {
		return "en"
	}
	return core.ResolveLocale(r.supported, candidates...)
}

func (r *Renderer) set(locale string) messageSet {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if set, ok := messageSets[locale]; ok {
		return set
	}
	return messageSets[r.fallbackLocale()]
}

func (r *Renderer) fallbackLocale() string {
	if r == nil || r.fallback == "" {
		return "en"
	}
	return r.fallback
}

// RenderPurchase renders the purchase notification for the message's locale.
func (r *Renderer) RenderPurchase(msg core.PurchaseNotification) (subject string, body string, err error) {
	set := r.set(msg.Locale)
	tmpl, err := template.New("purchase").Parse(set.purchaseBody)
	if err != nil {
		return "", "", fmt.Errorf("mail: parse purchase template: %w", err)
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = msg.Email
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Name     string
		Books    []core.BookLink
		AuthLink string
	}{Name: name, Books: msg.Books, AuthLink: msg.AuthLink}); err != nil {
		return "", "", fmt.Errorf("mail: render purchase template: %w", err)
	}
	return set.purchaseSubject, buf.String(), nil
}

// TokenErrorMessage maps a token failure code to a localized user message.
// Unknown codes get the invalid-token message so internals never leak.
func (r *Renderer) TokenErrorMessage(locale string, textCode string) string {
	set := r.set(locale)
	if msg, ok := set.tokenErrors[strings.ToUpper(strings.TrimSpace(textCode))]; ok {
		return msg
	}
	return set.tokenErrors[core.ErrorInvalidToken]
}
