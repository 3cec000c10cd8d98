//go:build integration

package integration

import (
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
)

func servicesInput(p *entities.Patient, section, testName, value string) services.ResultInput {
	return services.ResultInput{
		PatientID:   p.ID,
		PatientName: p.FullName(),
		Section:     section,
		TestName:    testName,
		ResultValue: value,
	}
}

func auditInput(resource string) services.AuditInput {
	return services.AuditInput{
		Actor:        entities.SystemActor,
		Action:       entities.AuditActionEdit,
		Resource:     resource,
		ResourceType: entities.ResourceTypeTestResult,
		Description:  "integration check",
	}
}

func userInput(name, email string, role entities.UserRole) services.UserInput {
	return services.UserInput{Name: name, Email: email, Role: role, Department: "Laboratory", Password: "integration-pass"}
}
