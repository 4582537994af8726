package signup

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StatusPendingReview marks a submitted application awaiting review
const StatusPendingReview = "pending_review"

// PersonalInfo is step 1
type PersonalInfo struct {
	TechnicianName  string `json:"technicianName" validate:"required,max=100"`
	ShopName        string `json:"shopName" validate:"required,max=100"`
	PersonalContact string `json:"personalContact" validate:"required,max=20"`
	ShopContact     string `json:"shopContact" validate:"required,max=20"`
	ShopAddress     string `json:"shopAddress" validate:"required,max=500"`
	GPSLocation     string `json:"gpsLocation" validate:"required,latlng"`
}

// ServiceSelection is step 2
type ServiceSelection struct {
	Services     []string `json:"services" validate:"required,min=1,dive,service"`
	VehicleTypes []string `json:"vehicleTypes" validate:"required,min=1,dive,vehicle"`
}

// Verification is step 3. Images are references to uploaded files.
type Verification struct {
	ShopImage       string `json:"shopImage" validate:"required"`
	EquipmentImage  string `json:"equipmentImage,omitempty"`
	WorkingBayImage string `json:"workingBayImage,omitempty"`
	FacilitiesImage string `json:"facilitiesImage,omitempty"`
	GSTINNumber     string `json:"gstinNumber,omitempty" validate:"omitempty,len=15,gstin"`
}

// Pricing is step 4: service id to sub-service id to price text
type Pricing map[string]map[string]string

// Application is a technician's complete signup form
type Application struct {
	ID           string           `json:"id" dynamodbav:"id"`
	PersonalInfo PersonalInfo     `json:"personalInfo" dynamodbav:"personal_info"`
	ServiceType  ServiceSelection `json:"serviceType" dynamodbav:"service_type"`
	Verification Verification     `json:"verification" dynamodbav:"verification"`
	Pricing      Pricing          `json:"pricing" dynamodbav:"pricing"`
	Status       string           `json:"status" dynamodbav:"status"`
	SubmittedAt  time.Time        `json:"submitted_at" dynamodbav:"submitted_at"`
}

// Validate checks the prices against the selected services.
// Empty prices are allowed; filled ones must be non-negative numbers.
func (p Pricing) Validate(selected []string) map[string]string {
	fieldErrors := make(map[string]string)

	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}

	serviceIDs := make([]string, 0, len(p))
	for id := range p {
		serviceIDs = append(serviceIDs, id)
	}
	sort.Strings(serviceIDs)

	for _, serviceID := range serviceIDs {
		service, ok := FindService(serviceID)
		if !ok || !chosen[serviceID] {
			fieldErrors["pricing."+serviceID] = fmt.Sprintf("The service '%s' is not selected.", serviceID)
			continue
		}

		for subID, value := range p[serviceID] {
			field := "pricing." + serviceID + "." + subID
			if !service.hasSubService(subID) {
				fieldErrors[field] = fmt.Sprintf("The field '%s' is not offered by this service.", field)
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			price, err := strconv.ParseFloat(value, 64)
			if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
				fieldErrors[field] = fmt.Sprintf("The field '%s' must be a number.", field)
				continue
			}
			if price < 0 {
				fieldErrors[field] = fmt.Sprintf("The field '%s' must be greater than or equal to 0.", field)
			}
		}
	}

	return fieldErrors
}
