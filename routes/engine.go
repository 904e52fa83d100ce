package routes

import (
	"github.com/song-xingzhou/MVEN-Parking/services"
)

// Engine wiring. main constructs the services over the Postgres store and
// hands them in; tests may swap in fakes.
var (
	booking *services.Booking
	rating  *services.Rating
	locator *services.Locator
)

func UseEngine(b *services.Booking, r *services.Rating, l *services.Locator) {
	booking = b
	rating = r
	locator = l
}
