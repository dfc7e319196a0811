package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphFetcher reads messages from a Microsoft 365 mailbox through the Graph
// API. Scheduled runs use the configured service token; manual runs pass the
// caller's token per fetch.
type GraphFetcher struct {
	serviceToken string
	mailbox      string
	timeout      time.Duration
	baseURL      string
}

// NewGraphFetcher builds a fetcher for the given mailbox. mailbox "me" targets
// the token owner's own inbox.
func NewGraphFetcher(serviceToken, mailbox string, timeout time.Duration) *GraphFetcher {
	if mailbox == "" {
		mailbox = "me"
	}
	return &GraphFetcher{
		serviceToken: serviceToken,
		mailbox:      mailbox,
		timeout:      timeout,
		baseURL:      graphBaseURL,
	}
}

// NewGraphFetcherWithBaseURL is used by tests to point at a stub server.
func NewGraphFetcherWithBaseURL(serviceToken, mailbox string, timeout time.Duration, baseURL string) *GraphFetcher {
	f := NewGraphFetcher(serviceToken, mailbox, timeout)
	f.baseURL = baseURL
	return f
}

type graphMessage struct {
	ID                string `json:"id"`
	InternetMessageID string `json:"internetMessageId"`
	Subject           string `json:"subject"`
	ReceivedDateTime  string `json:"receivedDateTime"`
	BodyPreview       string `json:"bodyPreview"`
	Body              struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	From struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
	ToRecipients []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"toRecipients"`
}

type graphMessageList struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

// Fetch retrieves messages received within the last opts.DaysBack days, newest
// first, up to opts.MaxCount.
func (f *GraphFetcher) Fetch(ctx context.Context, opts FetchOptions) ([]Message, error) {
	token := opts.AccessToken
	if token == "" {
		token = f.serviceToken
	}
	if token == "" {
		return nil, fmt.Errorf("no graph access token available")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = 1
	}
	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = 100
	}
	folder := opts.Folder
	if folder == "" {
		folder = "inbox"
	}

	since := time.Now().UTC().AddDate(0, 0, -daysBack).Format(time.RFC3339)
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("receivedDateTime ge %s", since))
	query.Set("$orderby", "receivedDateTime desc")
	query.Set("$top", fmt.Sprintf("%d", maxCount))
	query.Set("$select", "id,internetMessageId,subject,receivedDateTime,bodyPreview,body,from,toRecipients")

	endpoint := fmt.Sprintf("%s/%s/mailFolders/%s/messages?%s",
		f.baseURL, f.mailboxPath(), url.PathEscape(folder), query.Encode())

	var out []Message
	for endpoint != "" && len(out) < maxCount {
		page, err := f.fetchPage(ctx, client, endpoint)
		if err != nil {
			return nil, err
		}
		for _, gm := range page.Value {
			if len(out) >= maxCount {
				break
			}
			out = append(out, toMessage(gm))
		}
		endpoint = page.NextLink
	}
	return out, nil
}

func (f *GraphFetcher) fetchPage(ctx context.Context, client *http.Client, endpoint string) (*graphMessageList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph mail request failed with status %d", resp.StatusCode)
	}

	var page graphMessageList
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode graph mail response: %w", err)
	}
	return &page, nil
}

func (f *GraphFetcher) mailboxPath() string {
	if f.mailbox == "me" {
		return "me"
	}
	return "users/" + url.PathEscape(f.mailbox)
}

func toMessage(gm graphMessage) Message {
	received, err := time.Parse(time.RFC3339, gm.ReceivedDateTime)
	if err != nil {
		received = time.Now().UTC()
	}

	messageID := gm.InternetMessageID
	if messageID == "" {
		messageID = gm.ID
	}

	var to []string
	for _, r := range gm.ToRecipients {
		to = append(to, r.EmailAddress.Address)
	}

	bodyText := gm.BodyPreview
	bodyHTML := ""
	switch strings.ToLower(gm.Body.ContentType) {
	case "html":
		bodyHTML = gm.Body.Content
	default:
		bodyText = gm.Body.Content
	}

	return Message{
		MessageID:  messageID,
		From:       gm.From.EmailAddress.Address,
		To:         strings.Join(to, ", "),
		Subject:    gm.Subject,
		BodyText:   bodyText,
		BodyHTML:   bodyHTML,
		ReceivedAt: received,
		Headers: map[string]any{
			"graph_id":  gm.ID,
			"from_name": gm.From.EmailAddress.Name,
		},
	}
}
