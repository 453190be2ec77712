// Package googlebooks is a thin client for the Google Books volumes API used
// to prefill book metadata. It normalizes the loosely shaped volumeInfo
// payload into one fixed Volume shape.
package googlebooks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/nuggetapp/nugget-back/internal/config"
)

const defaultMaxResults = 10

type (
	Client struct {
		http    *resty.Client
		baseURL string
	}

	APIError struct {
		StatusCode int
	}

	Volume struct {
		GoogleBooksID string
		Title         string
		Subtitle      *string
		Authors       []string
		Author        string
		Publisher     *string
		PublishedDate *string
		Description   *string
		PageCount     *int
		Categories    []string
		AverageRating *float64
		RatingsCount  *int
		CoverURL      *string
		Language      string
		PreviewLink   *string
		InfoLink      *string
		ISBN          *string
		ISBN13        *string
		ISBN10        *string
	}

	imageLinks struct {
		SmallThumbnail string `json:"smallThumbnail"`
		Thumbnail      string `json:"thumbnail"`
		Small          string `json:"small"`
		Medium         string `json:"medium"`
		Large          string `json:"large"`
		ExtraLarge     string `json:"extraLarge"`
	}

	industryIdentifier struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	}

	volumeInfo struct {
		Title               string               `json:"title"`
		Subtitle            string               `json:"subtitle"`
		Authors             []string             `json:"authors"`
		Publisher           string               `json:"publisher"`
		PublishedDate       string               `json:"publishedDate"`
		Description         string               `json:"description"`
		PageCount           int                  `json:"pageCount"`
		Categories          []string             `json:"categories"`
		AverageRating       float64              `json:"averageRating"`
		RatingsCount        int                  `json:"ratingsCount"`
		ImageLinks          *imageLinks          `json:"imageLinks"`
		Language            string               `json:"language"`
		PreviewLink         string               `json:"previewLink"`
		InfoLink            string               `json:"infoLink"`
		IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	}

	volumeItem struct {
		ID         string     `json:"id"`
		VolumeInfo volumeInfo `json:"volumeInfo"`
	}

	volumesResponse struct {
		Items []volumeItem `json:"items"`
	}
)

func (e *APIError) Error() string {
	return fmt.Sprintf("google books api error: %d", e.StatusCode)
}

func NewClient(cfg *config.Config) *Client {
	return newClient(cfg.BooksAPIURL)
}

func newClient(baseURL string) *Client {
	return &Client{
		http:    resty.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Search queries the volumes endpoint by free text, ordered by relevance. A
// blank query returns an empty result without touching the network.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Volume, error) {
	if strings.TrimSpace(query) == "" {
		return []Volume{}, nil
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	body := volumesResponse{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":          query,
			"maxResults": strconv.Itoa(maxResults),
			"orderBy":    "relevance",
		}).
		SetResult(&body).
		Get(c.baseURL + "/volumes")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &APIError{StatusCode: resp.StatusCode()}
	}

	volumes := make([]Volume, len(body.Items))
	for i := range body.Items {
		volumes[i] = formatVolume(&body.Items[i])
	}
	return volumes, nil
}

// SearchByISBN looks up a single volume with an isbn: scoped query. Returns
// nil without error when the ISBN is blank or unknown.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*Volume, error) {
	if isbn == "" {
		return nil, nil
	}

	body := volumesResponse{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", "isbn:"+isbn).
		SetResult(&body).
		Get(c.baseURL + "/volumes")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &APIError{StatusCode: resp.StatusCode()}
	}

	if len(body.Items) == 0 {
		return nil, nil
	}
	v := formatVolume(&body.Items[0])
	return &v, nil
}

// GetVolume fetches one volume by its Google Books ID.
func (c *Client) GetVolume(ctx context.Context, googleBooksID string) (*Volume, error) {
	body := volumeItem{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.baseURL + "/volumes/" + googleBooksID)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &APIError{StatusCode: resp.StatusCode()}
	}

	v := formatVolume(&body)
	return &v, nil
}

func formatVolume(item *volumeItem) Volume {
	info := item.VolumeInfo

	v := Volume{
		GoogleBooksID: item.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Author:        "Unknown Author",
		Categories:    info.Categories,
		CoverURL:      bestCoverImage(info.ImageLinks),
		Language:      info.Language,
		ISBN:          isbnAny(info.IndustryIdentifiers),
		ISBN13:        isbnByType(info.IndustryIdentifiers, "ISBN_13"),
		ISBN10:        isbnByType(info.IndustryIdentifiers, "ISBN_10"),
	}
	if v.Title == "" {
		v.Title = "Unknown Title"
	}
	if len(info.Authors) != 0 {
		v.Author = info.Authors[0]
	}
	if v.Language == "" {
		v.Language = "en"
	}
	v.Subtitle = optString(info.Subtitle)
	v.Publisher = optString(info.Publisher)
	v.PublishedDate = optString(info.PublishedDate)
	v.Description = optString(info.Description)
	v.PreviewLink = optString(info.PreviewLink)
	v.InfoLink = optString(info.InfoLink)
	if info.PageCount != 0 {
		pages := info.PageCount
		v.PageCount = &pages
	}
	if info.AverageRating != 0 {
		rating := info.AverageRating
		v.AverageRating = &rating
	}
	if info.RatingsCount != 0 {
		count := info.RatingsCount
		v.RatingsCount = &count
	}
	return v
}

// bestCoverImage picks the highest-resolution variant available, largest
// first, and rewrites insecure image URLs to https.
func bestCoverImage(links *imageLinks) *string {
	if links == nil {
		return nil
	}
	for _, candidate := range []string{
		links.ExtraLarge,
		links.Large,
		links.Medium,
		links.Small,
		links.Thumbnail,
		links.SmallThumbnail,
	} {
		if candidate != "" {
			secure := strings.Replace(candidate, "http://", "https://", 1)
			return &secure
		}
	}
	return nil
}

// isbnAny prefers ISBN-13 over ISBN-10, falling back to whatever identifier
// comes first.
func isbnAny(identifiers []industryIdentifier) *string {
	if v := isbnByType(identifiers, "ISBN_13"); v != nil {
		return v
	}
	if v := isbnByType(identifiers, "ISBN_10"); v != nil {
		return v
	}
	if len(identifiers) != 0 {
		return &identifiers[0].Identifier
	}
	return nil
}

func isbnByType(identifiers []industryIdentifier, typ string) *string {
	for i := range identifiers {
		if identifiers[i].Type == typ {
			return &identifiers[i].Identifier
		}
	}
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
