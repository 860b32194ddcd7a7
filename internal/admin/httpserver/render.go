package httpserver

import (
	"context"
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/a-h/templ"

	custommw "github.com/finitefield-org/hanko-field/internal/admin/httpserver/middleware"
	"github.com/finitefield-org/hanko-field/internal/admin/orders"
)

//go:embed templates/*.html
var templateFS embed.FS

var consoleTemplates = template.Must(template.New("console").Funcs(template.FuncMap{
	"yen":                    orders.FormatYen,
	"datetime":               orders.FormatDateTime,
	"orderStatusLabel":       orders.OrderStatusLabel,
	"paymentStatusLabel":     orders.PaymentStatusLabel,
	"fulfillmentStatusLabel": orders.FulfillmentStatusLabel,
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Filters        orders.Filter
	StatusOptions  []orders.SelectOption
	CountryOptions []orders.CountryOption
	SourceLabel    string
	IsMock         bool
	Operator       string
	CSRF           custommw.CSRFToken
	Orders         []orders.OrderRow
	OrderDetail    *orders.OrderDetail
	Materials      []orders.MaterialRow
	MaterialDetail *orders.MaterialDetail
}

// view wraps a named console template as a templ component.
func view(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return consoleTemplates.ExecuteTemplate(w, name, data)
	})
}

func render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	templ.Handler(view(name, data), templ.WithStatus(status)).ServeHTTP(w, r)
}
