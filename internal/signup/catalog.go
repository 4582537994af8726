package signup

// SubService is a priced line item within a service
type SubService struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Service is a roadside service a technician can offer
type Service struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	SubServices []SubService `json:"sub_services"`
}

// VehicleType is a vehicle class a technician can work on
type VehicleType struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Catalog lists everything a technician can choose during signup
type Catalog struct {
	Steps        []StepInfo    `json:"steps"`
	Services     []Service     `json:"services"`
	VehicleTypes []VehicleType `json:"vehicle_types"`
}

var services = []Service{
	{ID: "mechanical", Label: "Mechanical Issues", Description: "General repairs & diagnostics", SubServices: []SubService{
		{"general", "General Service"},
		{"breakdown", "Breakdown Repair"},
		{"engine", "Engine Repair"},
		{"ac", "AC Repair"},
		{"electrical", "Electrical Work"},
		{"diagnostics", "Diagnostics"},
	}},
	{ID: "battery", Label: "Battery Jumpstart", Description: "Dead battery assistance", SubServices: []SubService{
		{"jumpstart", "Jumpstart Service"},
		{"replacement", "Battery Replacement"},
		{"testing", "Battery Testing"},
	}},
	{ID: "fuel", Label: "Fuel Delivery", Description: "Emergency fuel service", SubServices: []SubService{
		{"petrol", "Petrol Delivery"},
		{"diesel", "Diesel Delivery"},
		{"emergency", "Emergency Fuel (per liter)"},
	}},
	{ID: "lockout", Label: "Lockout Assistance", Description: "Vehicle lockout help", SubServices: []SubService{
		{"carLockout", "Car Lockout"},
		{"bikeLockout", "Bike Lockout"},
		{"keyMaking", "Key Making"},
	}},
	{ID: "tire", Label: "Flat Tire Repair", Description: "Tire change & repair", SubServices: []SubService{
		{"puncture", "Puncture Repair"},
		{"tireChange", "Tire Change"},
		{"wheelBalancing", "Wheel Balancing"},
		{"alignment", "Wheel Alignment"},
	}},
	{ID: "ev", Label: "EV Portable Charger", Description: "Electric vehicle charging", SubServices: []SubService{
		{"charging", "On-site Charging (per unit)"},
		{"evDiagnostics", "EV Diagnostics"},
		{"cableRepair", "Charging Cable Repair"},
	}},
	{ID: "winching", Label: "Winching", Description: "Vehicle recovery", SubServices: []SubService{
		{"lightVehicle", "Light Vehicle Winching"},
		{"heavyVehicle", "Heavy Vehicle Winching"},
		{"recovery", "Vehicle Recovery"},
	}},
	{ID: "towing", Label: "Towing", Description: "Vehicle towing service", SubServices: []SubService{
		{"localTowing", "Local Towing (per km)"},
		{"longDistance", "Long Distance (per km)"},
		{"flatbed", "Flatbed Towing"},
		{"bikeTowing", "Bike Towing"},
	}},
}

var vehicleTypes = []VehicleType{
	{ID: "car", Label: "Car", Description: "Sedans, SUVs, Hatchbacks"},
	{ID: "bike", Label: "Bike", Description: "Motorcycles & Scooters"},
	{ID: "commercial", Label: "Commercial Vehicle", Description: "Trucks, Buses, Vans"},
}

// GetCatalog returns the signup steps, services and vehicle types
func GetCatalog() Catalog {
	return Catalog{
		Steps:        append([]StepInfo(nil), steps...),
		Services:     append([]Service(nil), services...),
		VehicleTypes: append([]VehicleType(nil), vehicleTypes...),
	}
}

// FindService returns the service with the given id
func FindService(id string) (Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

func (s Service) hasSubService(id string) bool {
	for _, sub := range s.SubServices {
		if sub.ID == id {
			return true
		}
	}
	return false
}

func isVehicleType(id string) bool {
	for _, v := range vehicleTypes {
		if v.ID == id {
			return true
		}
	}
	return false
}
