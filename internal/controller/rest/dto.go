package rest

import (
	"fmt"
	"strings"
	"time"

	"github.com/hirelink/booking-core/internal/model"
	"github.com/hirelink/booking-core/internal/service"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type createBookingRequest struct {
	ServiceID        int64            `json:"service_id" binding:"required"`
	ProviderID       int64            `json:"provider_id" binding:"required"`
	ScheduledDate    string           `json:"scheduled_date" binding:"required"`
	ScheduledTime    string           `json:"scheduled_time" binding:"required"`
	ScheduledEndTime *string          `json:"scheduled_end_time"`
	ServiceAddress   string           `json:"service_address" binding:"required"`
	ServiceLandmark  *string          `json:"service_landmark"`
	ServicePincode   string           `json:"service_pincode" binding:"required,len=6,numeric"`
	ServiceLatitude  *decimal.Decimal `json:"service_latitude"`
	ServiceLongitude *decimal.Decimal `json:"service_longitude"`
	ServiceCity      *string          `json:"service_city"`
	ServiceState     *string          `json:"service_state"`
	IssueTitle       *string          `json:"issue_title"`
	IssueDescription *string          `json:"issue_description"`
	IssueImages      []string         `json:"issue_images"`
	UrgencyLevel     string           `json:"urgency_level"`
}

// toInput validates the fields binding tags cannot express. today is the
// caller's current date; the scheduled date must come after it.
func (r createBookingRequest) toInput(today time.Time) (service.CreateBookingInput, error) {
	var in service.CreateBookingInput

	date, err := time.Parse(dateLayout, r.ScheduledDate)
	if err != nil {
		return in, fmt.Errorf("scheduled_date must be YYYY-MM-DD")
	}
	y, m, d := today.Date()
	if !date.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return in, fmt.Errorf("scheduled_date must be in the future")
	}

	start, err := parseClock(r.ScheduledTime)
	if err != nil {
		return in, fmt.Errorf("scheduled_time: %w", err)
	}

	var end *string
	if r.ScheduledEndTime != nil && *r.ScheduledEndTime != "" {
		e, err := parseClock(*r.ScheduledEndTime)
		if err != nil {
			return in, fmt.Errorf("scheduled_end_time: %w", err)
		}
		end = &e
	}

	if strings.TrimSpace(r.ServiceAddress) == "" {
		return in, fmt.Errorf("service_address is required")
	}

	urgency, err := model.ParseUrgencyLevel(r.UrgencyLevel)
	if err != nil {
		return in, err
	}

	return service.CreateBookingInput{
		OfferingID:       r.ServiceID,
		ProviderID:       r.ProviderID,
		ScheduledDate:    date,
		ScheduledTime:    start,
		ScheduledEndTime: end,
		Address:          strings.TrimSpace(r.ServiceAddress),
		Landmark:         r.ServiceLandmark,
		Pincode:          r.ServicePincode,
		Latitude:         r.ServiceLatitude,
		Longitude:        r.ServiceLongitude,
		City:             r.ServiceCity,
		State:            r.ServiceState,
		IssueTitle:       r.IssueTitle,
		IssueDescription: r.IssueDescription,
		IssueImages:      r.IssueImages,
		Urgency:          urgency,
	}, nil
}

// parseClock accepts HH:MM or HH:MM:SS and returns HH:MM.
func parseClock(s string) (string, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid time %q, want HH:MM", s)
}

type updateStatusRequest struct {
	Status      string           `json:"status" binding:"required"`
	Reason      *string          `json:"reason"`
	Notes       *string          `json:"notes"`
	FinalAmount *decimal.Decimal `json:"final_amount"`
	WorkSummary *string          `json:"work_summary"`
}

func (r updateStatusRequest) toInput() (service.UpdateStatusInput, error) {
	status, err := model.ParseBookingStatus(r.Status)
	if err != nil {
		return service.UpdateStatusInput{}, err
	}
	return service.UpdateStatusInput{
		Status:      status,
		Reason:      r.Reason,
		Notes:       r.Notes,
		FinalAmount: r.FinalAmount,
		WorkSummary: r.WorkSummary,
	}, nil
}

type addReviewRequest struct {
	OverallRating         *decimal.Decimal `json:"overall_rating" binding:"required"`
	QualityRating         *decimal.Decimal `json:"quality_rating"`
	PunctualityRating     *decimal.Decimal `json:"punctuality_rating"`
	ProfessionalismRating *decimal.Decimal `json:"professionalism_rating"`
	ValueForMoneyRating   *decimal.Decimal `json:"value_for_money_rating"`
	ReviewTitle           *string          `json:"review_title"`
	ReviewText            *string          `json:"review_text"`
	ReviewImages          []string         `json:"review_images"`
}

func (r addReviewRequest) toInput() service.ReviewInput {
	return service.ReviewInput{
		Overall:         *r.OverallRating,
		Quality:         r.QualityRating,
		Punctuality:     r.PunctualityRating,
		Professionalism: r.ProfessionalismRating,
		ValueForMoney:   r.ValueForMoneyRating,
		Title:           r.ReviewTitle,
		Text:            r.ReviewText,
		Images:          r.ReviewImages,
	}
}

type createOrderRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

// verifyPaymentRequest uses the field names of the gateway's checkout callback.
type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

func (r verifyPaymentRequest) toInput() service.VerifyInput {
	return service.VerifyInput{
		OrderID:          r.RazorpayOrderID,
		GatewayPaymentID: r.RazorpayPaymentID,
		Signature:        r.RazorpaySignature,
	}
}

type listQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page"`
	Size   int    `form:"size"`
}

func (q listQuery) toFilter() (service.ListFilter, error) {
	f := service.ListFilter{Page: q.Page, Size: q.Size}
	if q.Status != "" {
		status, err := model.ParseBookingStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	return f, nil
}

type recentQuery struct {
	Limit int `form:"limit"`
}
