package service

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"roadside-portal/internal/storage"
)

// DemoRequestGenerator creates random pending roadside requests so the portal feed has traffic
type DemoRequestGenerator struct {
	jobService *JobService
	interval   time.Duration
	maxPending int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewDemoRequestGenerator creates a new demo request generator
func NewDemoRequestGenerator(jobService *JobService, interval time.Duration) *DemoRequestGenerator {
	return &DemoRequestGenerator{
		jobService: jobService,
		interval:   interval,
		maxPending: 15, // Keep the pending list readable
	}
}

// Start begins generating random requests
func (d *DemoRequestGenerator) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}

	d.running = true
	d.stopChan = make(chan struct{})
	d.done = make(chan struct{})
	slog.Info("Demo request generator started", "max_pending", d.maxPending, "interval", d.interval)

	go d.loop(d.stopChan, d.done)
}

// Stop stops generating requests and waits for the loop to exit
func (d *DemoRequestGenerator) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	done := d.done
	d.mu.Unlock()

	<-done
	slog.Info("Demo request generator stopped")
}

// IsRunning returns whether the generator is active
func (d *DemoRequestGenerator) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// DemoStatus reports the generator's state alongside the pending request backlog it throttles on
type DemoStatus struct {
	Running         bool   `json:"running"`
	PendingRequests int    `json:"pending_requests"`
	MaxPending      int    `json:"max_pending"`
	Interval        string `json:"interval"`
}

// Status returns the generator state and the current pending request count
func (d *DemoRequestGenerator) Status(ctx context.Context) (*DemoStatus, error) {
	pending, err := d.jobService.PendingJobCount(ctx)
	if err != nil {
		return nil, err
	}
	return &DemoStatus{
		Running:         d.IsRunning(),
		PendingRequests: pending,
		MaxPending:      d.maxPending,
		Interval:        d.interval.String(),
	}, nil
}

func (d *DemoRequestGenerator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		// Jitter between half and one and a half intervals
		wait := d.interval/2 + time.Duration(rand.Int63n(int64(d.interval)+1))
		timer := time.NewTimer(wait)

		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx := context.Background()
		pending, err := d.jobService.PendingJobCount(ctx)
		if err != nil {
			slog.Error("Failed to get pending job count", "error", err)
			continue
		}
		if pending >= d.maxPending {
			slog.Info("Demo pending limit reached, pausing generation", "pending", pending, "max_pending", d.maxPending)
			continue
		}

		d.createRandomRequest(ctx)
	}
}

// createRandomRequest generates a realistic roadside request
func (d *DemoRequestGenerator) createRandomRequest(ctx context.Context) (*storage.Job, error) {
	locations := getCityLocations()
	customers := getRandomCustomers()
	services := []string{"mechanical", "battery", "fuel", "lockout", "tire", "ev", "winching", "towing"}
	vehicles := []string{"car", "bike", "commercial"}

	location := locations[rand.Intn(len(locations))]
	customer := customers[rand.Intn(len(customers))]
	vehicle := vehicles[rand.Intn(len(vehicles))]
	address := location.Name

	// Distance from the nearest service hub
	hub := locations[0]
	distance := calculateDistance(hub.Lat, hub.Lng, location.Lat, location.Lng)

	job, err := d.jobService.CreateJob(ctx, CreateJobRequest{
		CustomerID:        customer.ID,
		CustomerName:      customer.Name,
		CustomerPhone:     &customer.Phone,
		ServiceType:       services[rand.Intn(len(services))],
		VehicleType:       &vehicle,
		CustomerLat:       location.Lat,
		CustomerLng:       location.Lng,
		CustomerAddress:   &address,
		EstimatedDistance: &distance,
	})
	if err != nil {
		slog.Error("Failed to create demo request", "error", err)
		return nil, err
	}

	slog.Info("Created demo request",
		"job_id", job.ID,
		"service_type", job.ServiceType,
		"location", location.Name,
		"customer", customer.Name)
	return job, nil
}

// Location is a named point in the service city
type Location struct {
	Name string
	Lat  float64
	Lng  float64
}

type demoCustomer struct {
	ID    string
	Name  string
	Phone string
}

// getCityLocations returns street-level Bengaluru locations. The first entry is the service hub.
func getCityLocations() []Location {
	return []Location{
		{"MG Road Metro", 12.9756, 77.6066},
		{"Koramangala 5th Block", 12.9352, 77.6245},
		{"Indiranagar 100ft Road", 12.9719, 77.6412},
		{"Whitefield ITPL", 12.9857, 77.7310},
		{"Electronic City Phase 1", 12.8456, 77.6603},
		{"Hebbal Flyover", 13.0358, 77.5970},
		{"Jayanagar 4th Block", 12.9250, 77.5838},
		{"Yeshwanthpur Junction", 13.0238, 77.5529},
		{"Marathahalli Bridge", 12.9569, 77.7011},
		{"HSR Layout Sector 2", 12.9116, 77.6474},
		{"Banashankari Temple", 12.9155, 77.5736},
		{"Outer Ring Road Bellandur", 12.9304, 77.6784},
		{"Kempegowda Bus Station", 12.9767, 77.5713},
		{"Airport Road Yelahanka", 13.1007, 77.5963},
	}
}

// getRandomCustomers returns realistic customers
func getRandomCustomers() []demoCustomer {
	return []demoCustomer{
		{"cust-aarav", "Aarav Sharma", "+91 98450 11223"},
		{"cust-priya", "Priya Nair", "+91 99000 44556"},
		{"cust-rohit", "Rohit Verma", "+91 98860 77889"},
		{"cust-ananya", "Ananya Rao", "+91 97400 12121"},
		{"cust-vikram", "Vikram Singh", "+91 96320 34343"},
		{"cust-meera", "Meera Iyer", "+91 95910 56565"},
		{"cust-karthik", "Karthik Reddy", "+91 94480 78787"},
		{"cust-fatima", "Fatima Khan", "+91 93410 90909"},
		{"cust-arjun", "Arjun Menon", "+91 90080 24680"},
		{"cust-sneha", "Sneha Kulkarni", "+91 88840 13579"},
	}
}
