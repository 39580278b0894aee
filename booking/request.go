package booking

import "github.com/ant0n-grachev/telegram-reservation-bot/types"

const (
	DefaultEndpoint = "https://api.resos.com/api/booking/insert"

	// StatusRequest is the booking status sent with every insert.
	StatusRequest = "request"
)

// Venue holds the fixed values identifying the restaurant on the booking service.
type Venue struct {
	RestaurantID  string
	OpeningHourID string
	LanguageCode  string
	Referrer      string
	Origin        string
	UserAgent     string
}

var DefaultVenue = Venue{
	RestaurantID:  "uSv6GwCcGYFfZgoGA",
	OpeningHourID: "HBxyafuobSnXFsuDm",
	LanguageCode:  "en",
	Referrer:      "https://dining.ucsc.edu/",
	Origin:        "https://university-center-bistro-cafe.resos.com",
	UserAgent:     "Mozilla/5.0",
}

type Guest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	NotificationEmail bool   `json:"notificationEmail"`
	NotificationSms   bool   `json:"notificationSms"`
	ReceiveNewsletter bool   `json:"receiveNewsletter"`
}

// Request is the insert payload of the booking service.
type Request struct {
	RestaurantID  string `json:"restaurantId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	People        int    `json:"people"`
	Guest         Guest  `json:"guest"`
	LanguageCode  string `json:"languageCode"`
	CustomFields  []any  `json:"customFields"`
	Status        string `json:"status"`
	OpeningHourID string `json:"openingHourId"`
	Referrer      string `json:"referrer"`
}

func NewRequest(form types.Reservation, venue Venue) Request {
	return Request{
		RestaurantID: venue.RestaurantID,
		Date:         form.Date,
		Time:         form.Time,
		People:       form.People,
		Guest: Guest{
			Name:              form.Name,
			Email:             form.Email,
			Phone:             form.Phone,
			NotificationEmail: true,
			NotificationSms:   true,
			ReceiveNewsletter: false,
		},
		LanguageCode:  venue.LanguageCode,
		CustomFields:  []any{},
		Status:        StatusRequest,
		OpeningHourID: venue.OpeningHourID,
		Referrer:      venue.Referrer,
	}
}
