package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// Status de relatório.
const (
	StatusRascunho  = "rascunho"
	StatusConcluido = "concluido"
)

// DBRelatorio representa um relatório descritivo sobre um aluno.
type DBRelatorio struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	AlunoID uuid.UUID `gorm:"column:aluno_id;type:uuid;not null;index"`

	// Apagar o aluno apaga seus relatórios.
	Aluno *DBAluno `gorm:"foreignKey:AlunoID;constraint:OnDelete:CASCADE"`

	Titulo      string  `gorm:"type:varchar(200);not null"`
	Periodo     string  `gorm:"type:varchar(100);not null"`
	Conteudo    string  `gorm:"type:text;not null"`
	Observacoes *string `gorm:"type:text"`
	Status      string  `gorm:"type:varchar(20);not null;index"`
	GeradoPorIA bool    `gorm:"column:gerado_por_ia;not null"`

	ProfessorID uuid.UUID `gorm:"column:professor_id;type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName especifica o nome da tabela para GORM.
func (DBRelatorio) TableName() string {
	return "relatorios"
}

func (r *DBRelatorio) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RelatorioCreate é usado para criar um relatório.
type RelatorioCreate struct {
	AlunoID     uuid.UUID `json:"alunoId"`
	Titulo      string    `json:"titulo"`
	Periodo     string    `json:"periodo"`
	Conteudo    string    `json:"conteudo"`
	Observacoes *string   `json:"observacoes,omitempty"`
	Status      string    `json:"status"`
	GeradoPorIA bool      `json:"geradoPorIA"`
}

// CleanAndValidate normaliza e valida os campos de RelatorioCreate. Status vazio vira rascunho.
func (rc *RelatorioCreate) CleanAndValidate() error {
	if rc.AlunoID == uuid.Nil {
		return appErrors.NewValidationError("Selecione um aluno.", map[string]string{"alunoId": "obrigatório"})
	}
	var err error
	if rc.Titulo, err = cleanCampoTexto(rc.Titulo, "titulo", "Título", 200); err != nil {
		return err
	}
	if rc.Periodo, err = cleanCampoTexto(rc.Periodo, "periodo", "Período", 100); err != nil {
		return err
	}
	rc.Conteudo = utils.SanitizeInput(rc.Conteudo)
	if rc.Conteudo == "" {
		return appErrors.NewValidationError("Conteúdo do relatório é obrigatório.", map[string]string{"conteudo": "obrigatório"})
	}
	rc.Observacoes = cleanTextoOpcional(rc.Observacoes)

	status := strings.ToLower(strings.TrimSpace(rc.Status))
	if status == "" {
		status = StatusRascunho
	}
	if !IsValidStatus(status) {
		return appErrors.NewValidationError("Status inválido (rascunho ou concluido).", map[string]string{"status": "valor não reconhecido"})
	}
	rc.Status = status
	return nil
}

// RelatorioUpdate é usado para atualização parcial.
type RelatorioUpdate struct {
	Titulo      *string `json:"titulo,omitempty"`
	Periodo     *string `json:"periodo,omitempty"`
	Conteudo    *string `json:"conteudo,omitempty"`
	Observacoes *string `json:"observacoes,omitempty"`
	Status      *string `json:"status,omitempty"`
	GeradoPorIA *bool   `json:"geradoPorIA,omitempty"`
}

// CleanAndValidate normaliza e valida os campos fornecidos.
func (ru *RelatorioUpdate) CleanAndValidate() error {
	if ru.Titulo != nil {
		titulo, err := cleanCampoTexto(*ru.Titulo, "titulo", "Título", 200)
		if err != nil {
			return err
		}
		ru.Titulo = &titulo
	}
	if ru.Periodo != nil {
		periodo, err := cleanCampoTexto(*ru.Periodo, "periodo", "Período", 100)
		if err != nil {
			return err
		}
		ru.Periodo = &periodo
	}
	if ru.Conteudo != nil {
		conteudo := utils.SanitizeInput(*ru.Conteudo)
		if conteudo == "" {
			return appErrors.NewValidationError("Conteúdo do relatório não pode ser vazio.", map[string]string{"conteudo": "não pode ser vazio"})
		}
		ru.Conteudo = &conteudo
	}
	if ru.Observacoes != nil {
		obs := utils.SanitizeInput(*ru.Observacoes)
		ru.Observacoes = &obs
	}
	if ru.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*ru.Status))
		if !IsValidStatus(status) {
			return appErrors.NewValidationError("Status inválido (rascunho ou concluido).", map[string]string{"status": "valor não reconhecido"})
		}
		ru.Status = &status
	}
	return nil
}

// IsEmpty indica se nenhum campo foi fornecido.
func (ru *RelatorioUpdate) IsEmpty() bool {
	return ru.Titulo == nil && ru.Periodo == nil && ru.Conteudo == nil &&
		ru.Observacoes == nil && ru.Status == nil && ru.GeradoPorIA == nil
}

// Changes devolve o mapa coluna -> valor para o UPDATE.
func (ru *RelatorioUpdate) Changes() map[string]interface{} {
	updates := make(map[string]interface{})
	if ru.Titulo != nil {
		updates["titulo"] = *ru.Titulo
	}
	if ru.Periodo != nil {
		updates["periodo"] = *ru.Periodo
	}
	if ru.Conteudo != nil {
		updates["conteudo"] = *ru.Conteudo
	}
	if ru.Observacoes != nil {
		updates["observacoes"] = nullIfEmpty(*ru.Observacoes)
	}
	if ru.Status != nil {
		updates["status"] = *ru.Status
	}
	if ru.GeradoPorIA != nil {
		updates["gerado_por_ia"] = *ru.GeradoPorIA
	}
	return updates
}

// IsValidStatus verifica se o status é rascunho ou concluido.
func IsValidStatus(status string) bool {
	return status == StatusRascunho || status == StatusConcluido
}

func cleanCampoTexto(raw, field, label string, maxLen int) (string, error) {
	v := strings.Join(strings.Fields(raw), " ")
	if v == "" {
		return "", appErrors.NewValidationError(label+" é obrigatório.", map[string]string{field: "obrigatório"})
	}
	if utf8.RuneCountInString(v) > maxLen {
		return "", appErrors.NewValidationError(label+" excede o tamanho máximo.", map[string]string{field: "muito longo"})
	}
	return v, nil
}
