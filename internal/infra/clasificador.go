package infra

// clasificador.go — AI classification of account movements.
// One chat completion per movement, JSON response format, with a
// deterministic fallback when the model is unavailable or answers garbage.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"

	"github.com/galo-graneros/ai-contador/internal/fiscal"
)

// MovimientoAClasificar is the classifier's view of a transaction.
type MovimientoAClasificar struct {
	Descripcion string
	Monto       float64
	Moneda      string
	Fecha       string
	Tipo        string
	Contraparte string
	RawData     string
}

// ResultadoClasificacion mirrors the JSON contract requested from the model.
type ResultadoClasificacion struct {
	CategoriaAFIP     string  `json:"categoria_afip"`
	Tipo              string  `json:"tipo"`
	ProveedorCliente  *string `json:"proveedor_cliente"`
	DescripcionLimpia string  `json:"descripcion_limpia"`
	Probabilidad      float64 `json:"probabilidad"`
	SugerenciaFactura bool    `json:"sugerencia_factura"`
	Notas             *string `json:"notas"`
	// Modelo records which model produced this result; empty on fallback.
	Modelo string `json:"-"`
}

// Clasificador wraps the OpenAI chat API for movement classification.
type Clasificador struct {
	client openai.Client
	model  string
}

func NewClasificador(apiKey, model string) *Clasificador {
	return &Clasificador{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(60 * time.Second),
		),
		model: model,
	}
}

const sistemaClasificador = `Eres un contador argentino experto en clasificación contable según RG 1415 y normativas AFIP.
Tu tarea es clasificar movimientos bancarios y de MercadoPago para pymes y monotributistas.
Siempre responde ÚNICAMENTE con un objeto JSON válido, sin explicaciones adicionales.
Las categorías válidas son: %s`

// Clasificar asks the model for a classification. It never returns an
// error: any failure falls back to a low-confidence default flagged for
// manual review, so a sync batch is never blocked by the AI being down.
func (c *Clasificador) Clasificar(ctx context.Context, mov MovimientoAClasificar) ResultadoClasificacion {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(sistemaClasificador, strings.Join(fiscal.CategoriasAFIP, ", "))),
			openai.UserMessage(buildPromptClasificacion(mov)),
		},
		Temperature: param.NewOpt(0.3),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("clasificador: fallo la llamada al modelo")
		return clasificacionPorDefecto(mov)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn().Msg("clasificador: respuesta vacia del modelo")
		return clasificacionPorDefecto(mov)
	}

	var out ResultadoClasificacion
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		log.Warn().Err(err).Msg("clasificador: respuesta no es JSON valido")
		return clasificacionPorDefecto(mov)
	}
	out.Modelo = c.model
	return normalizarClasificacion(out, mov)
}

// Explicar produces a short plain-language explanation of a classification.
func (c *Clasificador) Explicar(ctx context.Context, mov MovimientoAClasificar, cl ResultadoClasificacion) (string, error) {
	prompt := fmt.Sprintf(`Explica brevemente por qué este movimiento se clasificó así:

Movimiento: %s
Monto: %.2f %s

Clasificación asignada:
- Categoría AFIP: %s
- Tipo: %s
- Sugerencia factura: %t

Explica en 2-3 oraciones de forma simple.`,
		mov.Descripcion, mov.Monto, mov.Moneda,
		cl.CategoriaAFIP, cl.Tipo, cl.SugerenciaFactura)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Eres un contador argentino que explica clasificaciones contables de forma clara y sencilla para clientes que no son expertos en contabilidad."),
			openai.UserMessage(prompt),
		},
		Temperature: param.NewOpt(0.5),
		MaxTokens:   param.NewOpt[int64](200),
	})
	if err != nil {
		return "", fmt.Errorf("clasificador: explicar: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("clasificador: respuesta vacia")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPromptClasificacion(mov MovimientoAClasificar) string {
	contraparte := mov.Contraparte
	if contraparte == "" {
		contraparte = "No especificada"
	}
	extra := ""
	if mov.RawData != "" {
		extra = "\nDatos adicionales: " + mov.RawData
	}
	return fmt.Sprintf(`Clasifica el siguiente movimiento contable:

Descripción: %s
Monto: %.2f %s
Fecha: %s
Tipo detectado: %s
Contraparte: %s%s

Responde con un JSON con esta estructura exacta:
{
  "categoria_afip": "una de las categorías AFIP válidas",
  "tipo": "ingreso" | "gasto" | "transferencia" | "impuesto",
  "proveedor_cliente": "nombre del proveedor o cliente si se puede identificar, o null",
  "descripcion_limpia": "descripción clara y profesional del movimiento",
  "probabilidad": 0.0-1.0,
  "sugerencia_factura": true si debería facturarse o solicitar factura,
  "notas": "observaciones adicionales relevantes o null"
}`, mov.Descripcion, mov.Monto, mov.Moneda, mov.Fecha, mov.Tipo, contraparte, extra)
}

func normalizarClasificacion(cl ResultadoClasificacion, mov MovimientoAClasificar) ResultadoClasificacion {
	switch cl.Tipo {
	case "ingreso", "gasto", "transferencia", "impuesto":
	default:
		if mov.Monto > 0 {
			cl.Tipo = "ingreso"
		} else {
			cl.Tipo = "gasto"
		}
	}

	if !categoriaValida(cl.CategoriaAFIP) {
		if cl.Tipo == "ingreso" {
			cl.CategoriaAFIP = "Otros ingresos"
		} else {
			cl.CategoriaAFIP = "Otros gastos"
		}
	}

	if cl.DescripcionLimpia == "" {
		cl.DescripcionLimpia = mov.Descripcion
	}
	if cl.Probabilidad < 0 {
		cl.Probabilidad = 0
	}
	if cl.Probabilidad > 1 {
		cl.Probabilidad = 1
	}
	if cl.Probabilidad == 0 {
		cl.Probabilidad = 0.5
	}
	return cl
}

func clasificacionPorDefecto(mov MovimientoAClasificar) ResultadoClasificacion {
	esIngreso := mov.Monto > 0 || mov.Tipo == "income"
	categoria := "Otros gastos"
	tipo := "gasto"
	if esIngreso {
		categoria = "Otros ingresos"
		tipo = "ingreso"
	}
	notas := "Clasificación automática por defecto - requiere revisión manual"
	var contraparte *string
	if mov.Contraparte != "" {
		contraparte = &mov.Contraparte
	}
	return ResultadoClasificacion{
		CategoriaAFIP:     categoria,
		Tipo:              tipo,
		ProveedorCliente:  contraparte,
		DescripcionLimpia: mov.Descripcion,
		Probabilidad:      0.3,
		SugerenciaFactura: esIngreso,
		Notas:             &notas,
	}
}

func categoriaValida(cat string) bool {
	for _, c := range fiscal.CategoriasAFIP {
		if c == cat {
			return true
		}
	}
	return false
}
