package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tipos de perfil reconhecidos.
const (
	TipoAdmin     = "admin"
	TipoProfessor = "professor"
)

// DBProfile é o perfil de aplicação de um usuário autenticado.
// O ID é o mesmo do usuário de autenticação (auth_users.id).
type DBProfile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nome      string    `gorm:"type:varchar(150);not null"`
	Tipo      string    `gorm:"type:varchar(20);not null;index"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// TableName especifica o nome da tabela para GORM.
func (DBProfile) TableName() string {
	return "profiles"
}

// IsAdmin indica se o perfil é de administrador.
func (p *DBProfile) IsAdmin() bool {
	return p != nil && p.Tipo == TipoAdmin
}

// IsProfessor indica se o perfil é de professor.
func (p *DBProfile) IsProfessor() bool {
	return p != nil && p.Tipo == TipoProfessor
}

// IsValidTipo verifica se o tipo de perfil é um dos reconhecidos.
func IsValidTipo(tipo string) bool {
	return tipo == TipoAdmin || tipo == TipoProfessor
}

// ProfilePublic representa o perfil para a UI ou API.
type ProfilePublic struct {
	ID   uuid.UUID `json:"id"`
	Nome string    `json:"nome"`
	Tipo string    `json:"tipo"`
}

// ToProfilePublic converte um DBProfile para ProfilePublic.
func ToProfilePublic(p *DBProfile) *ProfilePublic {
	if p == nil {
		return nil
	}
	return &ProfilePublic{ID: p.ID, Nome: p.Nome, Tipo: p.Tipo}
}

// DBAuthUser é a credencial de login do provedor de autenticação local.
type DBAuthUser struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email        string     `gorm:"type:varchar(254);uniqueIndex;not null"`
	PasswordHash string     `gorm:"type:varchar(255);not null"`
	LastSignInAt *time.Time
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime"`
}

func (DBAuthUser) TableName() string {
	return "auth_users"
}

func (u *DBAuthUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DBAuthSession é uma sessão emitida pelo provedor local. O ID é o "jti" do token.
type DBAuthSession struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	User      *DBAuthUser `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time   `gorm:"not null;index"`
	CreatedAt time.Time   `gorm:"not null;autoCreateTime"`
}

func (DBAuthSession) TableName() string {
	return "auth_sessions"
}

func (s *DBAuthSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
