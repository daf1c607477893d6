package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/webtrail-dev/webtrail/pkg/workflow"
)

// Session is one live browser page. It executes workflow steps and exposes
// the page state the collector captures after each one. Sessions are not
// safe for concurrent use; run one goroutine per session.
type Session struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// ExecuteStep performs one workflow step against the page.
func (s *Session) ExecuteStep(step workflow.Step) error {
	switch step.ActionType {
	case workflow.ActionNavigate:
		return s.Navigate(step.URL)
	case workflow.ActionClick:
		return s.Click(step.Selector)
	case workflow.ActionType:
		return s.TypeText(step.Selector, step.Text)
	case workflow.ActionWaitForSelector:
		return s.WaitForSelector(step.Selector)
	case workflow.ActionWaitForTime:
		s.WaitForTime(time.Duration(step.DurationMS) * time.Millisecond)
		return nil
	case workflow.ActionExtractText:
		_, err := s.ExtractText(step.Selector)
		return err
	case workflow.ActionScroll:
		return s.Scroll(step.DeltaY)
	case workflow.ActionAssertElement:
		return s.AssertElement(step.Selector)
	case workflow.ActionAssertText:
		return s.AssertText(step.Selector, step.Text)
	default:
		return fmt.Errorf("unsupported action type %q", step.ActionType)
	}
}

// Navigate loads url and waits for DOM content.
func (s *Session) Navigate(url string) error {
	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded}
	if _, err := s.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Click clicks the element matched by selector.
func (s *Session) Click(selector string) error {
	if err := s.page.Click(selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// TypeText fills the element matched by selector with text.
func (s *Session) TypeText(selector, text string) error {
	if err := s.page.Fill(selector, text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// WaitForSelector waits for selector to appear in the DOM.
func (s *Session) WaitForSelector(selector string) error {
	if _, err := s.page.WaitForSelector(selector); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// WaitForTime pauses the session for a fixed duration.
func (s *Session) WaitForTime(d time.Duration) {
	s.page.WaitForTimeout(float64(d.Milliseconds()))
}

// ExtractText returns the text content of the element matched by selector.
func (s *Session) ExtractText(selector string) (string, error) {
	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", selector, err)
	}
	if element == nil {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	text, err := element.TextContent()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", selector, err)
	}
	return text, nil
}

// Scroll scrolls the page vertically by deltaY pixels.
func (s *Session) Scroll(deltaY int) error {
	if err := s.page.Mouse().Wheel(0, float64(deltaY)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// AssertElement fails if selector matches no element.
func (s *Session) AssertElement(selector string) error {
	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return fmt.Errorf("query %s: %w", selector, err)
	}
	if element == nil {
		return fmt.Errorf("assertion failed: no element matches %s", selector)
	}
	return nil
}

// AssertText fails unless the element matched by selector contains text.
func (s *Session) AssertText(selector, text string) error {
	got, err := s.ExtractText(selector)
	if err != nil {
		return err
	}
	if !strings.Contains(got, text) {
		return fmt.Errorf("assertion failed: %s does not contain %q", selector, text)
	}
	return nil
}

// HTML returns the full serialized DOM of the current page.
func (s *Session) HTML() (string, error) {
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return content, nil
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot() ([]byte, error) {
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng})
	if err != nil {
		return nil, fmt.Errorf("take screenshot: %w", err)
	}
	return data, nil
}

// URL returns the current page URL.
func (s *Session) URL() string {
	return s.page.URL()
}

// Close tears down the page, context, and browser.
func (s *Session) Close() error {
	var firstErr error
	if err := s.context.Close(); err != nil {
		firstErr = fmt.Errorf("close context: %w", err)
	}
	if err := s.browser.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close browser: %w", err)
	}
	return firstErr
}
