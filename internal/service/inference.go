package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/pipeline"
	"github.com/timmy/planscan/internal/prompts"
)

var (
	// ErrBackendUnavailable marks calls that could not reach a working backend.
	ErrBackendUnavailable = pipeline.ErrBackendUnavailable
	// ErrMalformedResponse marks responses that do not carry the expected JSON.
	ErrMalformedResponse = errors.New("malformed inference response")
)

// InferenceClient talks to an OpenAI-compatible chat completions endpoint for
// page classification, room extraction and line-item scaffolding.
type InferenceClient struct {
	client       *resty.Client
	endpoint     string
	textModel    string
	visionModel  string
	maxTokens    int
	maxPageChars int
	schemas      *responseSchemas
}

// NewInferenceClient creates a new inference client.
// Parameters:
//   - cfg: inference configuration including base URL, models, and API key.
//
// Returns:
//   - *InferenceClient: initialized client.
//   - error: non-nil if the response schemas cannot be compiled.
func NewInferenceClient(cfg config.InferenceConfig) (*InferenceClient, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// Per-call bound; the job budget is carried by the request context.
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.TextModel
	}

	return &InferenceClient{
		client:       client,
		endpoint:     baseURL + "/chat/completions",
		textModel:    cfg.TextModel,
		visionModel:  visionModel,
		maxTokens:    maxTokens,
		maxPageChars: cfg.MaxPageChars,
		schemas:      schemas,
	}, nil
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIImageContent struct {
	Type     string         `json:"type"`
	ImageURL openAIImageURL `json:"image_url"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Classify returns one classification per page the backend answered for.
// Pages the backend omits are left out; callers decide how to treat them.
func (c *InferenceClient) Classify(ctx context.Context, pages []domain.ExtractedPage) ([]domain.PageClassification, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	input := make([]prompts.PageText, len(pages))
	asked := make(map[int]bool, len(pages))
	for i, p := range pages {
		input[i] = prompts.PageText{PageNumber: p.PageNumber, Text: c.truncate(p.Text)}
		asked[p.PageNumber] = true
	}

	content, err := c.complete(ctx, c.textModel, prompts.ClassifySystemPrompt, prompts.ClassifyUserPrompt(input), nil)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Pages []struct {
			PageNumber    int      `json:"page_number"`
			Type          string   `json:"type"`
			Confidence    *float64 `json:"confidence"`
			HasRoomLabels *bool    `json:"has_room_labels"`
			Reason        *string  `json:"reason"`
		} `json:"pages"`
	}
	if err := c.decode(content, c.schemas.classification, &wire); err != nil {
		return nil, err
	}

	out := make([]domain.PageClassification, 0, len(wire.Pages))
	seen := make(map[int]bool, len(wire.Pages))
	for _, p := range wire.Pages {
		if !asked[p.PageNumber] || seen[p.PageNumber] {
			continue
		}
		seen[p.PageNumber] = true
		out = append(out, domain.PageClassification{
			PageNumber:    p.PageNumber,
			Type:          domain.ParseSheetType(p.Type),
			Confidence:    coerceConfidence(p.Confidence),
			HasRoomLabels: p.HasRoomLabels != nil && *p.HasRoomLabels,
			Reason:        deref(p.Reason),
		})
	}
	return out, nil
}

// ExtractRooms extracts rooms from the text of one sheet.
func (c *InferenceClient) ExtractRooms(ctx context.Context, sheet domain.SheetInfo, text string) (*domain.RoomExtraction, error) {
	user := prompts.RoomTextUserPrompt(sheet.SheetTitle, sheet.Level, sheet.PageNumber, c.truncate(text))
	content, err := c.complete(ctx, c.textModel, prompts.RoomSystemPrompt, user, nil)
	if err != nil {
		return nil, err
	}
	return c.parseRooms(content)
}

// ExtractRoomsFromImages extracts rooms from page images. Images carrying a
// URL are sent by reference; the rest are inlined as data URLs.
func (c *InferenceClient) ExtractRoomsFromImages(ctx context.Context, images []domain.PageImage) (*domain.RoomExtraction, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to submit")
	}
	pageNumbers := make([]int, 0, len(images))
	for _, img := range images {
		if img.PageNumber > 0 {
			pageNumbers = append(pageNumbers, img.PageNumber)
		}
	}

	parts := make([]interface{}, 0, len(images))
	for _, img := range images {
		url := img.URL
		if url == "" {
			mimeType := img.MIMEType
			if mimeType == "" {
				mimeType = "image/jpeg"
			}
			url = fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))
		}
		parts = append(parts, openAIImageContent{
			Type: "image_url",
			ImageURL: openAIImageURL{
				URL:    url,
				Detail: "high", // room labels are small text
			},
		})
	}

	content, err := c.complete(ctx, c.visionModel, prompts.RoomSystemPrompt, prompts.RoomVisionUserPrompt(pageNumbers), parts)
	if err != nil {
		return nil, err
	}
	return c.parseRooms(content)
}

// ScaffoldLineItems drafts unpriced line items for the given rooms. Pricing
// fields are not part of the decoded shape, so any the backend sends are dropped.
func (c *InferenceClient) ScaffoldLineItems(ctx context.Context, rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, error) {
	if len(rooms) == 0 {
		return nil, nil
	}
	summaries := make([]prompts.RoomSummary, len(rooms))
	for i, r := range rooms {
		level := r.Level
		if level == "" {
			level = domain.DefaultLevel
		}
		s := prompts.RoomSummary{Name: r.Name, Type: string(r.RoomType), Level: level, Notes: r.Notes}
		if r.AreaSqFt != nil {
			s.AreaSqFt = *r.AreaSqFt
		}
		summaries[i] = s
	}

	content, err := c.complete(ctx, c.textModel, prompts.LineItemSystemPrompt, prompts.LineItemUserPrompt(summaries), nil)
	if err != nil {
		return nil, err
	}

	var wire struct {
		LineItems []struct {
			Description string   `json:"description"`
			Category    *string  `json:"category"`
			CostCode    *string  `json:"cost_code"`
			RoomName    *string  `json:"room_name"`
			Quantity    *float64 `json:"quantity"`
			Unit        *string  `json:"unit"`
			Notes       *string  `json:"notes"`
		} `json:"line_items"`
	}
	if err := c.decode(content, c.schemas.lineItems, &wire); err != nil {
		return nil, err
	}

	out := make([]domain.LineItemScaffold, 0, len(wire.LineItems))
	for _, li := range wire.LineItems {
		item := domain.LineItemScaffold{
			Description: strings.TrimSpace(li.Description),
			Category:    strings.ToLower(strings.TrimSpace(deref(li.Category))),
			CostCode:    strings.TrimSpace(deref(li.CostCode)),
			RoomName:    strings.TrimSpace(deref(li.RoomName)),
			Quantity:    1,
			Unit:        strings.TrimSpace(deref(li.Unit)),
			Notes:       strings.TrimSpace(deref(li.Notes)),
		}
		if li.Quantity != nil && *li.Quantity > 0 {
			item.Quantity = *li.Quantity
		}
		if item.Unit == "" {
			item.Unit = domain.ScopeReviewUnit
		}
		if item.Category == "" {
			item.Category = domain.ScopeReviewCategory
		}
		out = append(out, item)
	}
	return out, nil
}

type roomWire struct {
	Name            *string  `json:"name"`
	Level           *string  `json:"level"`
	RoomType        *string  `json:"room_type"`
	AreaSqFt        *float64 `json:"area_sqft"`
	LengthFt        *float64 `json:"length_ft"`
	WidthFt         *float64 `json:"width_ft"`
	CeilingHeightFt *float64 `json:"ceiling_height_ft"`
	Dimensions      *string  `json:"dimensions"`
	Notes           *string  `json:"notes"`
	Confidence      *float64 `json:"confidence"`
}

func (c *InferenceClient) parseRooms(content string) (*domain.RoomExtraction, error) {
	var wire struct {
		Rooms       []roomWire `json:"rooms"`
		Assumptions []string   `json:"assumptions"`
		Warnings    []string   `json:"warnings"`
		MissingInfo []string   `json:"missing_info"`
	}
	if err := c.decode(content, c.schemas.rooms, &wire); err != nil {
		return nil, err
	}

	out := &domain.RoomExtraction{
		Rooms:       make([]domain.ExtractedRoom, 0, len(wire.Rooms)),
		Assumptions: nonEmpty(wire.Assumptions),
		Warnings:    nonEmpty(wire.Warnings),
		MissingInfo: nonEmpty(wire.MissingInfo),
	}
	for _, r := range wire.Rooms {
		room := domain.ExtractedRoom{
			Name:            deref(r.Name),
			Level:           deref(r.Level),
			RoomType:        domain.RoomType(deref(r.RoomType)),
			AreaSqFt:        positive(r.AreaSqFt),
			LengthFt:        positive(r.LengthFt),
			WidthFt:         positive(r.WidthFt),
			CeilingHeightFt: positive(r.CeilingHeightFt),
			Dimensions:      strings.TrimSpace(deref(r.Dimensions)),
			Notes:           strings.TrimSpace(deref(r.Notes)),
			Confidence:      coerceConfidence(r.Confidence),
		}
		room.Normalize()
		out.Rooms = append(out.Rooms, room)
	}
	return out, nil
}

// complete sends one chat completion and returns the assistant text.
func (c *InferenceClient) complete(ctx context.Context, model, system, user string, images []interface{}) (string, error) {
	var userContent interface{} = user
	if len(images) > 0 {
		parts := make([]interface{}, 0, len(images)+1)
		parts = append(parts, openAITextContent{Type: "text", Text: user})
		parts = append(parts, images...)
		userContent = parts
	}

	req := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: userContent},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp openAIResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	status := httpResp.StatusCode()
	if status < 200 || status >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", status)
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", status, resp.Error.Message)
		} else if body := httpResp.Body(); len(body) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", status, truncateString(string(body), 300))
		}
		if unavailableStatus(status) {
			return "", fmt.Errorf("%w: %s", ErrBackendUnavailable, errorMsg)
		}
		return "", fmt.Errorf("inference API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("inference API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// decode extracts the JSON object from content, validates it and unmarshals it into out.
func (c *InferenceClient) decode(content string, schema interface{ Validate(interface{}) error }, out interface{}) error {
	raw, err := extractJSON(content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// extractJSON returns the first complete JSON object in content, skipping any
// <think> block and surrounding prose or code fences.
func extractJSON(content string) (string, error) {
	if start := strings.Index(content, "<think>"); start != -1 {
		if end := strings.Index(content, "</think>"); end != -1 && end > start {
			content = content[end+len("</think>"):]
		}
	}

	jsonStart := strings.Index(content, "{")
	if jsonStart == -1 {
		return "", fmt.Errorf("no JSON found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := jsonStart; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[jsonStart : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("incomplete JSON in response")
}

func (c *InferenceClient) truncate(text string) string {
	if c.maxPageChars <= 0 {
		return text
	}
	return truncateString(text, c.maxPageChars)
}

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func unavailableStatus(status int) bool {
	switch {
	case status >= 500,
		status == http.StatusTooManyRequests,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound:
		return true
	}
	return false
}

// coerceConfidence maps a backend confidence to an integer in [0,100].
// Fractions strictly between 0 and 1 are read as probabilities.
func coerceConfidence(v *float64) int {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	f := *v
	if f > 0 && f < 1 {
		f *= 100
	}
	return domain.ClampConfidence(int(math.Round(f)))
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
