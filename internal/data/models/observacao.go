package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

const (
	// ObsMaxLen é o tamanho máximo do texto de uma observação.
	ObsMaxLen = 500
	// AvaliacaoMin e AvaliacaoMax delimitam a nota (estrelas) de uma observação.
	AvaliacaoMin = 1
	AvaliacaoMax = 5
	// TipoObsPadrao é o tipo pré-selecionado no formulário.
	TipoObsPadrao = "comportamental"
)

// TipoObservacao descreve um tipo de observação e seu rótulo de exibição.
type TipoObservacao struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TiposObservacao é o catálogo de tipos, na ordem de exibição.
var TiposObservacao = []TipoObservacao{
	{"comportamental", "Comportamental"},
	{"cognitivo", "Cognitivo"},
	{"motora", "Motora"},
	{"alimentacao", "Alimentação"},
	{"social", "Social"},
	{"comunicacao", "Comunicação"},
	{"autonomia", "Autonomia"},
	{"rotina", "Rotina"},
}

// IsValidTipoObs verifica se o tipo pertence ao catálogo.
func IsValidTipoObs(tipo string) bool {
	for _, t := range TiposObservacao {
		if t.Value == tipo {
			return true
		}
	}
	return false
}

// LabelTipoObs devolve o rótulo de exibição de um tipo (ou o próprio valor, se desconhecido).
func LabelTipoObs(tipo string) string {
	for _, t := range TiposObservacao {
		if t.Value == tipo {
			return t.Label
		}
	}
	return tipo
}

// DBObservacao representa uma observação pedagógica sobre um aluno.
type DBObservacao struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`
	IDAluno uuid.UUID `gorm:"column:id_aluno;type:uuid;not null;index"`

	// Apagar o aluno apaga suas observações.
	Aluno *DBAluno `gorm:"foreignKey:IDAluno;constraint:OnDelete:CASCADE"`

	DataRegistro   time.Time `gorm:"column:data_registro;not null;index"`
	TipoObs        string    `gorm:"column:tipo_obs;type:varchar(30);not null;index"`
	RangeAvaliacao int       `gorm:"column:range_avaliacao;not null"`
	Obs            string    `gorm:"type:varchar(500);not null"`

	ProfessorID uuid.UUID `gorm:"column:professor_id;type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName especifica o nome da tabela para GORM.
func (DBObservacao) TableName() string {
	return "observacoes_aluno"
}

// ObservacaoCreate é usado para registrar uma observação.
// Sem DataRegistro, vale o momento do registro.
type ObservacaoCreate struct {
	IDAluno        uuid.UUID  `json:"idAluno"`
	DataRegistro   *time.Time `json:"dataRegistro,omitempty"`
	TipoObs        string     `json:"tipoObs"`
	RangeAvaliacao int        `json:"rangeAvaliacao"`
	Obs            string     `json:"obs"`
}

// CleanAndValidate normaliza e valida os campos de ObservacaoCreate.
func (oc *ObservacaoCreate) CleanAndValidate() error {
	if oc.IDAluno == uuid.Nil {
		return appErrors.NewValidationError("Selecione um aluno.", map[string]string{"idAluno": "obrigatório"})
	}
	tipo := strings.ToLower(strings.TrimSpace(oc.TipoObs))
	if tipo == "" {
		tipo = TipoObsPadrao
	}
	if err := validateTipoObs(tipo); err != nil {
		return err
	}
	oc.TipoObs = tipo

	if err := ValidateAvaliacao(oc.RangeAvaliacao); err != nil {
		return err
	}

	obs, err := cleanObs(oc.Obs)
	if err != nil {
		return err
	}
	oc.Obs = obs
	return nil
}

// ObservacaoUpdate é usado para atualização parcial.
type ObservacaoUpdate struct {
	DataRegistro   *time.Time `json:"dataRegistro,omitempty"`
	TipoObs        *string    `json:"tipoObs,omitempty"`
	RangeAvaliacao *int       `json:"rangeAvaliacao,omitempty"`
	Obs            *string    `json:"obs,omitempty"`
}

// CleanAndValidate normaliza e valida os campos fornecidos.
func (ou *ObservacaoUpdate) CleanAndValidate() error {
	if ou.TipoObs != nil {
		tipo := strings.ToLower(strings.TrimSpace(*ou.TipoObs))
		if err := validateTipoObs(tipo); err != nil {
			return err
		}
		ou.TipoObs = &tipo
	}
	if ou.RangeAvaliacao != nil {
		if err := ValidateAvaliacao(*ou.RangeAvaliacao); err != nil {
			return err
		}
	}
	if ou.Obs != nil {
		obs, err := cleanObs(*ou.Obs)
		if err != nil {
			return err
		}
		ou.Obs = &obs
	}
	return nil
}

// IsEmpty indica se nenhum campo foi fornecido.
func (ou *ObservacaoUpdate) IsEmpty() bool {
	return ou.DataRegistro == nil && ou.TipoObs == nil && ou.RangeAvaliacao == nil && ou.Obs == nil
}

// Changes devolve o mapa coluna -> valor para o UPDATE.
func (ou *ObservacaoUpdate) Changes() map[string]interface{} {
	updates := make(map[string]interface{})
	if ou.DataRegistro != nil {
		updates["data_registro"] = ou.DataRegistro.UTC()
	}
	if ou.TipoObs != nil {
		updates["tipo_obs"] = *ou.TipoObs
	}
	if ou.RangeAvaliacao != nil {
		updates["range_avaliacao"] = *ou.RangeAvaliacao
	}
	if ou.Obs != nil {
		updates["obs"] = *ou.Obs
	}
	return updates
}

// ValidateAvaliacao garante que a nota é um inteiro entre 1 e 5.
func ValidateAvaliacao(v int) error {
	if v < AvaliacaoMin || v > AvaliacaoMax {
		return appErrors.NewValidationError(
			fmt.Sprintf("Avaliação deve estar entre %d e %d.", AvaliacaoMin, AvaliacaoMax),
			map[string]string{"rangeAvaliacao": fmt.Sprintf("valor %d fora do intervalo", v)},
		)
	}
	return nil
}

func validateTipoObs(tipo string) error {
	if !IsValidTipoObs(tipo) {
		return appErrors.NewValidationError("Tipo de observação inválido.", map[string]string{"tipoObs": fmt.Sprintf("'%s' não reconhecido", tipo)})
	}
	return nil
}

func cleanObs(raw string) (string, error) {
	obs := utils.SanitizeInput(raw)
	if obs == "" {
		return "", appErrors.NewValidationError("Preencha a observação.", map[string]string{"obs": "obrigatório"})
	}
	if utf8.RuneCountInString(obs) > ObsMaxLen {
		return "", appErrors.NewValidationError(
			fmt.Sprintf("Observação excede %d caracteres.", ObsMaxLen),
			map[string]string{"obs": "muito longo"},
		)
	}
	return obs, nil
}
