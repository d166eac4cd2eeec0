package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// YearLevel captures a student's academic standing.
type YearLevel string

// Supported year levels.
const (
	YearLevelFreshman  YearLevel = "Freshman"
	YearLevelSophomore YearLevel = "Sophomore"
	YearLevelJunior    YearLevel = "Junior"
	YearLevelSenior    YearLevel = "Senior"
	YearLevelGraduate  YearLevel = "Graduate"
)

// Address is the optional postal address stored alongside a student as JSONB.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Value implements driver.Valuer.
func (a *Address) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported address type %T", src)
	}
}

// Student represents a learner registered in the institution.
type Student struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"studentId"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth  time.Time `db:"date_of_birth" json:"dateOfBirth"`
	Major        string    `db:"major" json:"major"`
	YearLevel    YearLevel `db:"year_level" json:"yearLevel"`
	GPA          float64   `db:"gpa" json:"gpa"`
	TotalCredits int       `db:"total_credits" json:"totalCredits"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	Address      *Address  `db:"address" json:"address,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Major     string
	YearLevel YearLevel
	Page      int
	PageSize  int
}
