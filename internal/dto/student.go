package dto

import "github.com/noah-isme/course-management-api/internal/models"

// StudentRequest is the create and full-replace payload for a student.
type StudentRequest struct {
	StudentID    string           `json:"studentId" validate:"required,min=3,max=10"`
	FirstName    string           `json:"firstName" validate:"required,min=2,max=50"`
	LastName     string           `json:"lastName" validate:"required,min=2,max=50"`
	Email        string           `json:"email" validate:"required,email"`
	Phone        string           `json:"phone" validate:"omitempty,phone"`
	DateOfBirth  *Date            `json:"dateOfBirth" validate:"required"`
	Major        string           `json:"major" validate:"required,min=2,max=100"`
	YearLevel    models.YearLevel `json:"yearLevel" validate:"required,oneof=Freshman Sophomore Junior Senior Graduate"`
	GPA          float64          `json:"gpa" validate:"min=0,max=4"`
	TotalCredits int              `json:"totalCredits" validate:"min=0"`
	IsActive     *bool            `json:"isActive"`
	Address      *AddressRequest  `json:"address" validate:"omitempty"`
}

// AddressRequest is the optional postal address of a student.
type AddressRequest struct {
	Street  string `json:"street" validate:"max=200"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zipCode" validate:"max=20"`
	Country string `json:"country" validate:"max=100"`
}

// StudentListQuery captures list filters from the query string.
type StudentListQuery struct {
	Search    string           `form:"search" json:"search"`
	Major     string           `form:"major" json:"major"`
	YearLevel models.YearLevel `form:"yearLevel" json:"yearLevel" validate:"omitempty,oneof=Freshman Sophomore Junior Senior Graduate"`
	Page      int              `form:"page" json:"page" validate:"omitempty,min=1"`
	Limit     int              `form:"limit" json:"limit" validate:"omitempty,min=1"`
}
