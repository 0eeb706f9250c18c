package utils

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
)

// DateLayout é o formato das datas trafegadas (data de nascimento, filtros de período).
const DateLayout = "2006-01-02"

// --- Validador de E-mail ---

// ValidateEmail verifica se um e-mail é válido e devolve a versão normalizada (minúsculas, sem espaços).
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", appErrors.NewValidationError("E-mail é obrigatório.", map[string]string{"email": "obrigatório"})
	}
	if len(email) > 254 {
		return "", appErrors.NewValidationError("E-mail excede 254 caracteres.", map[string]string{"email": "muito longo"})
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", appErrors.NewValidationError("Formato de e-mail inválido.", map[string]string{"email": "formato inválido"})
	}
	return email, nil
}

// --- Validador de Força de Senha ---

// PasswordStrengthResult contém os resultados da validação de força da senha.
type PasswordStrengthResult struct {
	IsValid           bool `json:"is_valid"`
	Length            bool `json:"length"`
	NotCommonPassword bool `json:"not_common_password"`
	MinLengthRequired int  `json:"min_length_required"`
}

// GetErrorDetailsList retorna uma lista de strings descrevendo as falhas de validação.
func (psr *PasswordStrengthResult) GetErrorDetailsList() []string {
	var details []string
	if !psr.IsValid {
		if !psr.Length {
			details = append(details, fmt.Sprintf("comprimento mínimo de %d caracteres", psr.MinLengthRequired))
		}
		if !psr.NotCommonPassword {
			details = append(details, "senha muito comum")
		}
	}
	return details
}

var commonPasswords = map[string]bool{
	"password": true, "123456": true, "qwerty": true, "admin": true, "welcome": true,
	"senha123": true, "12345678": true, "abc123": true, "password123": true,
	"admin123": true, "111111": true, "123123": true, "senha": true, "654321": true,
}

// ValidatePasswordStrength verifica a força de uma senha.
// O provedor de autenticação só exige comprimento mínimo e rejeita senhas triviais.
func ValidatePasswordStrength(password string, minLength int) PasswordStrengthResult {
	res := PasswordStrengthResult{MinLengthRequired: minLength}
	if password == "" {
		return res
	}
	res.Length = utf8.RuneCountInString(password) >= minLength
	res.NotCommonPassword = !commonPasswords[strings.ToLower(password)]
	res.IsValid = res.Length && res.NotCommonPassword
	return res
}

// --- Nomes e textos livres ---

// Nomes de pessoas e turmas: letras (inclusive acentuadas), números, espaços, ponto, apóstrofo e hífen.
var personNameRegex = regexp.MustCompile(`^[\p{L}\d\s.'ºª-]+$`)

// IsValidPersonName verifica o formato de um nome de pessoa ou turma.
func IsValidPersonName(name string, minLen, maxLen int) bool {
	n := utf8.RuneCountInString(name)
	if n < minLen || n > maxLen {
		return false
	}
	return personNameRegex.MatchString(name)
}

// TitleCase normaliza espaços e converte para Title Case respeitando o idioma.
// Um Caser guarda estado, por isso é criado a cada chamada.
func TitleCase(s string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.Join(strings.Fields(s), " "))
}

// FoldAccents remove acentos e converte para minúsculas ("Alimentação" -> "alimentacao").
// Usado na busca textual quando o banco não oferece full-text com dicionário português.
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// --- Telefone ---

var phoneDigitsRegex = regexp.MustCompile(`\D`)

// NormalizePhone mantém apenas dígitos e valida o tamanho (10 ou 11 dígitos com DDD).
// Telefone vazio é aceito e devolvido vazio.
func NormalizePhone(phone string) (string, error) {
	digits := phoneDigitsRegex.ReplaceAllString(phone, "")
	if digits == "" {
		return "", nil
	}
	if len(digits) < 10 || len(digits) > 11 {
		return "", appErrors.NewValidationError("Telefone deve ter DDD e 8 ou 9 dígitos.", map[string]string{"telefone": "formato inválido"})
	}
	return digits, nil
}

// --- Datas ---

// ParseDate interpreta uma data no formato AAAA-MM-DD (ou RFC3339, descartando o horário).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// --- Sanitização ---

// SanitizeInput remove caracteres de controle (exceto tab e quebras de linha) e espaços nas pontas.
// Quebras de linha são preservadas (conteúdo de relatórios).
func SanitizeInput(inputStr string) string {
	if inputStr == "" {
		return ""
	}
	var sb strings.Builder
	for _, r := range inputStr {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}
