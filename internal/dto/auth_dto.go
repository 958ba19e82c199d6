package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RegistrarRequest struct {
	Email           string  `json:"email"            validate:"required,email"`
	Nombre          string  `json:"nombre"           validate:"required,min=2,max=100"`
	Password        string  `json:"password"         validate:"required,min=8"`
	CUIT            *string `json:"cuit"             validate:"omitempty"`
	CondicionFiscal string  `json:"condicion_fiscal" validate:"omitempty,oneof=monotributo responsable_inscripto"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ActualizarPerfilRequest struct {
	Nombre               string  `json:"nombre"                validate:"omitempty,min=2,max=100"`
	CUIT                 *string `json:"cuit"                  validate:"omitempty"`
	CondicionFiscal      string  `json:"condicion_fiscal"      validate:"omitempty,oneof=monotributo responsable_inscripto"`
	CategoriaMonotributo *string `json:"categoria_monotributo" validate:"omitempty,len=1"`
	Password             string  `json:"password"              validate:"omitempty,min=8"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UsuarioResponse struct {
	ID                   string  `json:"id"`
	Email                string  `json:"email"`
	Nombre               string  `json:"nombre"`
	CUIT                 *string `json:"cuit,omitempty"`
	CondicionFiscal      string  `json:"condicion_fiscal"`
	CategoriaMonotributo *string `json:"categoria_monotributo,omitempty"`
	Activo               bool    `json:"activo"`
}

type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"` // seconds
	User         UsuarioResponse `json:"user"`
}
