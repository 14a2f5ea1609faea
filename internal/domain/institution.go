package domain

// Institution is owned by the directory side of the platform; bookings only read it.
type Institution struct {
	ID            string
	Name          string
	Address       string
	City          string
	State         string
	Contact       string
	VisitingHours string
}
