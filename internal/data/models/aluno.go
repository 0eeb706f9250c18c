package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// DBAluno representa um aluno no banco de dados.
// A idade não é armazenada: é calculada a partir de DataNascimento a cada leitura.
type DBAluno struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nome    string    `gorm:"type:varchar(150);not null;index"`
	TurmaID uuid.UUID `gorm:"column:turma_id;type:uuid;not null;index"`

	// Turma é o join raso (aluno -> nome da turma). Apagar a turma apaga seus alunos.
	Turma *DBTurma `gorm:"foreignKey:TurmaID;constraint:OnDelete:CASCADE"`

	DataNascimento time.Time `gorm:"column:data_nascimento;not null"`
	Responsavel    string    `gorm:"type:varchar(150);not null"`
	Telefone       *string   `gorm:"type:varchar(20)"`
	Observacoes    *string   `gorm:"type:text"`

	RelatoriosCount  int `gorm:"column:relatorios_count;not null;default:0"`
	ObservacoesCount int `gorm:"column:observacoes_count;not null;default:0"`

	ProfessorID uuid.UUID `gorm:"column:professor_id;type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName especifica o nome da tabela para GORM.
func (DBAluno) TableName() string {
	return "alunos"
}

func (a *DBAluno) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AlunoCreate é usado para cadastrar um aluno.
// DataNascimento trafega como "AAAA-MM-DD".
type AlunoCreate struct {
	Nome           string    `json:"nome"`
	TurmaID        uuid.UUID `json:"turmaId"`
	DataNascimento string    `json:"dataNascimento"`
	Responsavel    string    `json:"responsavel"`
	Telefone       *string   `json:"telefone,omitempty"`
	Observacoes    *string   `json:"observacoes,omitempty"`

	nascimento time.Time
}

// CleanAndValidate normaliza e valida os campos de AlunoCreate.
// Nome e responsável vão para Title Case; telefone fica só com dígitos.
func (ac *AlunoCreate) CleanAndValidate(hoje time.Time) error {
	nome, err := cleanPessoa(ac.Nome, "nome", "Nome do aluno")
	if err != nil {
		return err
	}
	ac.Nome = nome

	if ac.TurmaID == uuid.Nil {
		return appErrors.NewValidationError("Turma é obrigatória.", map[string]string{"turmaId": "obrigatório"})
	}

	nascimento, err := cleanNascimento(ac.DataNascimento, hoje)
	if err != nil {
		return err
	}
	ac.nascimento = nascimento
	ac.DataNascimento = nascimento.Format(utils.DateLayout)

	responsavel, err := cleanPessoa(ac.Responsavel, "responsavel", "Nome do responsável")
	if err != nil {
		return err
	}
	ac.Responsavel = responsavel

	if ac.Telefone, err = cleanTelefone(ac.Telefone); err != nil {
		return err
	}
	ac.Observacoes = cleanTextoOpcional(ac.Observacoes)
	return nil
}

// Nascimento devolve a data de nascimento já interpretada por CleanAndValidate.
func (ac *AlunoCreate) Nascimento() time.Time {
	return ac.nascimento
}

// AlunoUpdate é usado para atualização parcial.
type AlunoUpdate struct {
	Nome           *string    `json:"nome,omitempty"`
	TurmaID        *uuid.UUID `json:"turmaId,omitempty"`
	DataNascimento *string    `json:"dataNascimento,omitempty"`
	Responsavel    *string    `json:"responsavel,omitempty"`
	Telefone       *string    `json:"telefone,omitempty"`
	Observacoes    *string    `json:"observacoes,omitempty"`

	nascimento *time.Time
}

// CleanAndValidate normaliza e valida os campos fornecidos.
// Nome, turma, nascimento e responsável vazios contam como "não fornecido";
// telefone e observações vazios limpam o valor.
func (au *AlunoUpdate) CleanAndValidate(hoje time.Time) error {
	if au.Nome != nil {
		if strings.TrimSpace(*au.Nome) == "" {
			au.Nome = nil
		} else {
			nome, err := cleanPessoa(*au.Nome, "nome", "Nome do aluno")
			if err != nil {
				return err
			}
			au.Nome = &nome
		}
	}
	if au.TurmaID != nil && *au.TurmaID == uuid.Nil {
		au.TurmaID = nil
	}
	if au.DataNascimento != nil {
		if strings.TrimSpace(*au.DataNascimento) == "" {
			au.DataNascimento = nil
		} else {
			nascimento, err := cleanNascimento(*au.DataNascimento, hoje)
			if err != nil {
				return err
			}
			s := nascimento.Format(utils.DateLayout)
			au.DataNascimento = &s
			au.nascimento = &nascimento
		}
	}
	if au.Responsavel != nil {
		if strings.TrimSpace(*au.Responsavel) == "" {
			au.Responsavel = nil
		} else {
			responsavel, err := cleanPessoa(*au.Responsavel, "responsavel", "Nome do responsável")
			if err != nil {
				return err
			}
			au.Responsavel = &responsavel
		}
	}
	if au.Telefone != nil {
		tel, err := utils.NormalizePhone(*au.Telefone)
		if err != nil {
			return err
		}
		au.Telefone = &tel
	}
	if au.Observacoes != nil {
		obs := utils.SanitizeInput(*au.Observacoes)
		au.Observacoes = &obs
	}
	return nil
}

// IsEmpty indica se nenhum campo foi fornecido.
func (au *AlunoUpdate) IsEmpty() bool {
	return au.Nome == nil && au.TurmaID == nil && au.DataNascimento == nil &&
		au.Responsavel == nil && au.Telefone == nil && au.Observacoes == nil
}

// Changes devolve o mapa coluna -> valor para o UPDATE.
func (au *AlunoUpdate) Changes() map[string]interface{} {
	updates := make(map[string]interface{})
	if au.Nome != nil {
		updates["nome"] = *au.Nome
	}
	if au.TurmaID != nil {
		updates["turma_id"] = *au.TurmaID
	}
	if au.nascimento != nil {
		updates["data_nascimento"] = *au.nascimento
	}
	if au.Responsavel != nil {
		updates["responsavel"] = *au.Responsavel
	}
	if au.Telefone != nil {
		updates["telefone"] = nullIfEmpty(*au.Telefone)
	}
	if au.Observacoes != nil {
		updates["observacoes"] = nullIfEmpty(*au.Observacoes)
	}
	return updates
}

func cleanPessoa(raw, field, label string) (string, error) {
	nome := strings.Join(strings.Fields(raw), " ")
	if nome == "" {
		return "", appErrors.NewValidationError(label+" é obrigatório.", map[string]string{field: "obrigatório"})
	}
	if !utils.IsValidPersonName(nome, 2, 150) {
		return "", appErrors.NewValidationError(
			label+" deve ter entre 2 e 150 caracteres e conter apenas letras, espaços, '.', ''' ou '-'.",
			map[string]string{field: "formato inválido"},
		)
	}
	return utils.TitleCase(nome), nil
}

func cleanNascimento(raw string, hoje time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, appErrors.NewValidationError("Data de nascimento é obrigatória.", map[string]string{"dataNascimento": "obrigatório"})
	}
	nascimento, err := utils.ParseDate(raw)
	if err != nil {
		return time.Time{}, appErrors.NewValidationError("Data de nascimento inválida (use AAAA-MM-DD).", map[string]string{"dataNascimento": "formato inválido"})
	}
	if !hoje.IsZero() && nascimento.After(hoje) {
		return time.Time{}, appErrors.NewValidationError("Data de nascimento não pode estar no futuro.", map[string]string{"dataNascimento": "data futura"})
	}
	return nascimento, nil
}

func cleanTelefone(tel *string) (*string, error) {
	if tel == nil {
		return nil, nil
	}
	digits, err := utils.NormalizePhone(*tel)
	if err != nil {
		return nil, err
	}
	if digits == "" {
		return nil, nil
	}
	return &digits, nil
}

func cleanTextoOpcional(s *string) *string {
	if s == nil {
		return nil
	}
	clean := utils.SanitizeInput(*s)
	if clean == "" {
		return nil
	}
	return &clean
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
