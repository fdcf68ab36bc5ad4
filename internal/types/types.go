package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestKind discriminates cache entries and normalizers.
type RequestKind string

const (
	KindChat           RequestKind = "chat"
	KindItinerary      RequestKind = "itinerary"
	KindTranslation    RequestKind = "translation"
	KindRecommendation RequestKind = "recommendation"
)

// BudgetBand is the requested spending level for a trip.
type BudgetBand string

const (
	BudgetLow    BudgetBand = "low"
	BudgetMedium BudgetBand = "medium"
	BudgetHigh   BudgetBand = "high"
)

// DailyCap returns the per-day spending cap in HKD for the band.
// Low HK$200-500, medium HK$500-1000, high HK$1000+.
func (b BudgetBand) DailyCap() decimal.Decimal {
	switch b {
	case BudgetLow:
		return decimal.NewFromInt(500)
	case BudgetHigh:
		return decimal.NewFromInt(2500)
	default:
		return decimal.NewFromInt(1000)
	}
}

// TravelPace controls the activities-per-day target.
type TravelPace string

const (
	PaceSlow     TravelPace = "slow"
	PaceModerate TravelPace = "moderate"
	PaceFast     TravelPace = "fast"
)

// TargetPerDay returns the planned activity count for a day. The planner
// may go one over when a cheap candidate fits, or under on the last day.
func (p TravelPace) TargetPerDay() int {
	switch p {
	case PaceSlow:
		return 2
	case PaceFast:
		return 4
	default:
		return 3
	}
}

// UserContext carries the caller's preference snapshot across turns.
type UserContext struct {
	Location           string   `json:"location,omitempty"`
	LanguagePreference string   `json:"language_preference,omitempty"`
	Interests          []string `json:"interests,omitempty"`
	BudgetRange        string   `json:"budget_range,omitempty"`
}

// ConversationMessage is immutable once appended to a session.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatRequest struct {
	Message             string                `json:"message"`
	ConversationID      string                `json:"conversation_id,omitempty"`
	ConversationHistory []ConversationMessage `json:"conversation_history,omitempty"`
	UserContext         *UserContext          `json:"user_context,omitempty"`
}

// Source is a grounding fragment surfaced back to the caller.
type Source struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	URL            string  `json:"url,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

type ChatResponse struct {
	Message        string   `json:"message"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversation_id"`
}

// KnowledgeChunk is a retrieved knowledge-base fragment. The relevance
// score is query-dependent and never stored.
type KnowledgeChunk struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	SourceURL      string  `json:"source_url,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

type ItineraryRequest struct {
	Duration            int        `json:"duration"`
	Interests           []string   `json:"interests"`
	Budget              BudgetBand `json:"budget"`
	Accommodation       string     `json:"accommodation,omitempty"`
	TravelStyle         TravelPace `json:"travel_style"`
	GroupSize           int        `json:"group_size"`
	SpecialRequirements []string   `json:"special_requirements,omitempty"`
	ConversationID      string     `json:"conversation_id,omitempty"`
}

// CandidateActivity is an entry from the activity pool the planner
// schedules from.
type CandidateActivity struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Area        string          `json:"area,omitempty"`
	Interests   []string        `json:"interests"`
	Cost        decimal.Decimal `json:"cost"`
	DurationMin int             `json:"duration_minutes"`
	Rating      float64         `json:"rating"`
	Transport   string          `json:"transport,omitempty"`
	Tip         string          `json:"tip,omitempty"`
}

// Activity is a scheduled slot inside a DayPlan.
type Activity struct {
	Name        string          `json:"name"`
	Time        string          `json:"time"` // "09:00"
	DurationMin int             `json:"duration_minutes"`
	Cost        decimal.Decimal `json:"cost"`
	Description string          `json:"description"`
	Transport   string          `json:"transport,omitempty"`
	Tip         string          `json:"tips,omitempty"`
}

type DayPlan struct {
	Day           int             `json:"day"`
	Activities    []Activity      `json:"activities"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	TransportInfo string          `json:"transportation_info,omitempty"`
}

type ItineraryResponse struct {
	Itinerary          []DayPlan       `json:"itinerary"`
	TotalEstimatedCost decimal.Decimal `json:"total_estimated_cost"`
	Tips               []string        `json:"tips"`
	ConversationID     string          `json:"conversation_id,omitempty"`
}

type TranslationRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	ContextType    string `json:"context_type,omitempty"` // "menu", "sign", "conversation"
}

type TranslationResponse struct {
	TranslatedText  string  `json:"translated_text"`
	OriginalText    string  `json:"original_text,omitempty"`
	CulturalContext string  `json:"cultural_context,omitempty"`
	Confidence      float64 `json:"confidence"`
}

type RecommendationRequest struct {
	UserPreferences map[string]any `json:"user_preferences"`
	CurrentLocation string         `json:"current_location,omitempty"`
	TimeContext     string         `json:"time_context,omitempty"` // "morning", "afternoon", "evening"
	Limit           int            `json:"limit"`
	ConversationID  string         `json:"conversation_id,omitempty"`
}

type Recommendation struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Location      string   `json:"location"`
	Rating        float64  `json:"rating,omitempty"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	CostRange     string   `json:"cost_range,omitempty"`
	Reasons       []string `json:"reasons"`
}

type RecommendationResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	ConversationID  string           `json:"conversation_id,omitempty"`
}

type SessionStats struct {
	SessionID            string    `json:"session_id"`
	CreatedAt            time.Time `json:"created_at"`
	LastActivity         time.Time `json:"last_activity"`
	InteractionCount     int       `json:"interaction_count"`
	ConversationMessages int       `json:"conversation_messages"`
	HasPreferences       bool      `json:"has_preferences"`
}
