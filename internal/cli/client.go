package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StepErrorResponse — запись о падении шага из API.
type StepErrorResponse struct {
	StepID    string `json:"step_id"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Status      string              `json:"status"`
	CurrentStep string              `json:"current_step,omitempty"`
	Steps       []StepRequest       `json:"steps,omitempty"`
	Context     map[string]any      `json:"context,omitempty"`
	Results     map[string]any      `json:"results,omitempty"`
	Errors      []StepErrorResponse `json:"errors,omitempty"`
	CreatedAt   string              `json:"created_at"`
	StartedAt   string              `json:"started_at,omitempty"`
	CompletedAt string              `json:"completed_at,omitempty"`
	DurationMs  int64               `json:"duration_ms,omitempty"`
}

// PipelineSummaryResponse — краткое представление pipeline из API.
type PipelineSummaryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	StepCount   int    `json:"step_count"`
	ErrorCount  int    `json:"error_count,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// StatisticsResponse — статистика реестра из API.
type StatisticsResponse struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	Running       int `json:"running"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Cancelled     int `json:"cancelled"`
	StepsExecuted int `json:"steps_executed"`
}

// CleanupResponse — результат очистки из API.
type CleanupResponse struct {
	Removed       int   `json:"removed"`
	ArchivePurged int64 `json:"archive_purged"`
}

// --- Request types ---

// StepRequest — шаг pipeline в запросе создания.
type StepRequest struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Params     map[string]any `json:"params,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Optional   bool           `json:"optional,omitempty"`
	TimeoutSec float64        `json:"timeout_sec,omitempty"`
	RetryCount int            `json:"retry_count,omitempty"`
	Condition  string         `json:"condition,omitempty"`
}

// CreatePipelineRequest — создание pipeline.
type CreatePipelineRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []StepRequest  `json:"steps"`
	Context     map[string]any `json:"context,omitempty"`
	Execute     bool           `json:"execute,omitempty"`
}

// CleanupRequest — запрос на очистку.
type CleanupRequest struct {
	MaxAgeSec float64 `json:"max_age_sec"`
}

// ListOpts — параметры фильтрации списков.
type ListOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Sentra API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// CreatePipeline создаёт pipeline.
func (c *Client) CreatePipeline(req CreatePipelineRequest) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines", req, &p)
	return &p, err
}

// ListPipelines возвращает список pipeline.
func (c *Client) ListPipelines(opts ListOpts) ([]PipelineSummaryResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}

	var pipelines []PipelineSummaryResponse
	err := c.list("/api/v1/pipelines", params, &pipelines)
	return pipelines, err
}

// GetPipeline возвращает pipeline по ID.
func (c *Client) GetPipeline(id string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipelines/"+id, &p)
	return &p, err
}

// ExecutePipeline ставит pipeline на выполнение.
func (c *Client) ExecutePipeline(id string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/"+id+"/execute", nil, &p)
	return &p, err
}

// CancelPipeline отменяет pipeline.
func (c *Client) CancelPipeline(id string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/"+id+"/cancel", nil, &p)
	return &p, err
}

// --- Registry operations ---

// GetStatistics возвращает статистику реестра.
func (c *Client) GetStatistics() (*StatisticsResponse, error) {
	var stats StatisticsResponse
	err := c.get("/api/v1/stats", &stats)
	return &stats, err
}

// Cleanup удаляет завершённые pipeline старше maxAgeSec.
func (c *Client) Cleanup(maxAgeSec float64) (*CleanupResponse, error) {
	var resp CleanupResponse
	err := c.post("/api/v1/cleanup", CleanupRequest{MaxAgeSec: maxAgeSec}, &resp)
	return &resp, err
}

// --- Archive ---

// ListArchive возвращает историю выполнений.
func (c *Client) ListArchive(opts ListOpts) ([]PipelineSummaryResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var pipelines []PipelineSummaryResponse
	err := c.list("/api/v1/archive", params, &pipelines)
	return pipelines, err
}

// GetArchived возвращает архивное выполнение по ID.
func (c *Client) GetArchived(id string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/archive/"+id, &p)
	return &p, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
