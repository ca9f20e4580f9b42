package playwright

import (
	"context"
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
)

var _ ports.Executor = (*Executor)(nil)

// Executor drives a Playwright-launched Firefox in-process instead of
// spawning the external camoufox bridge. It covers the core page actions;
// the bridge remains the transport for the long tail.
//
// Every Execute call launches its own browser so concurrent tasks share
// nothing, mirroring the one-process-per-task isolation of the bridge.
type Executor struct {
	pw *playwright.Playwright
}

func New() (*Executor, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return &Executor{pw: pw}, nil
}

func (e *Executor) Close() error {
	return e.pw.Stop()
}

var supported = map[domain.Action]struct{}{
	domain.ActionNavigate:   {},
	domain.ActionScreenshot: {},
	domain.ActionGetContent: {},
	domain.ActionClick:      {},
	domain.ActionFill:       {},
	domain.ActionEvaluate:   {},
}

func Supported(action domain.Action) bool {
	_, ok := supported[action]
	return ok
}

func (e *Executor) Execute(ctx context.Context, action domain.Action, params domain.Params) domain.Outcome {
	if !Supported(action) {
		return failure("action %q is not supported by the in-process executor", action)
	}

	headless := boolParam(params, "headless", true)
	browser, err := e.pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		return failure("failed to launch browser: %s", err)
	}
	defer browser.Close()

	contextOpts := playwright.BrowserNewContextOptions{}
	if locale := stringParam(params, "locale"); locale != "" {
		contextOpts.Locale = playwright.String(locale)
	}
	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		return failure("failed to create browser context: %s", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		return failure("failed to open page: %s", err)
	}

	return e.run(page, action, params)
}

func (e *Executor) run(page playwright.Page, action domain.Action, params domain.Params) domain.Outcome {
	result := map[string]any{}

	gotoPage := func(required bool) error {
		url := stringParam(params, "url")
		if url == "" {
			if required {
				return fmt.Errorf("url is required for %s action", action)
			}
			return nil
		}
		opts := playwright.PageGotoOptions{}
		if wu := stringParam(params, "wait_until"); wu != "" {
			waitUntil := playwright.WaitUntilState(wu)
			opts.WaitUntil = &waitUntil
		}
		_, err := page.Goto(url, opts)
		return err
	}

	switch action {
	case domain.ActionNavigate:
		if err := gotoPage(true); err != nil {
			return failure("%s", err)
		}
		title, err := page.Title()
		if err != nil {
			return failure("%s", err)
		}
		result["url"] = page.URL()
		result["title"] = title

	case domain.ActionScreenshot:
		if err := gotoPage(false); err != nil {
			return failure("%s", err)
		}
		path := stringParam(params, "path")
		if path == "" {
			path = "/tmp/screenshot.png"
		}
		_, err := page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(boolParam(params, "full_page", false)),
		})
		if err != nil {
			return failure("%s", err)
		}
		result["screenshot_path"] = path
		result["url"] = page.URL()

	case domain.ActionGetContent:
		if err := gotoPage(false); err != nil {
			return failure("%s", err)
		}
		content, err := page.Content()
		if err != nil {
			return failure("%s", err)
		}
		title, err := page.Title()
		if err != nil {
			return failure("%s", err)
		}
		result["content"] = content
		result["url"] = page.URL()
		result["title"] = title

	case domain.ActionClick:
		if err := gotoPage(false); err != nil {
			return failure("%s", err)
		}
		selector := stringParam(params, "selector")
		if selector == "" {
			return failure("selector is required for click action")
		}
		if err := page.Click(selector); err != nil {
			return failure("%s", err)
		}
		if err := page.WaitForLoadState(); err != nil {
			return failure("%s", err)
		}
		title, err := page.Title()
		if err != nil {
			return failure("%s", err)
		}
		result["url"] = page.URL()
		result["title"] = title

	case domain.ActionFill:
		if err := gotoPage(false); err != nil {
			return failure("%s", err)
		}
		selector := stringParam(params, "selector")
		value, hasValue := params["value"].(string)
		if selector == "" || !hasValue {
			return failure("selector and value are required for fill action")
		}
		if err := page.Fill(selector, value); err != nil {
			return failure("%s", err)
		}
		result["url"] = page.URL()

	case domain.ActionEvaluate:
		if err := gotoPage(false); err != nil {
			return failure("%s", err)
		}
		script := stringParam(params, "script")
		if script == "" {
			return failure("script is required for evaluate action")
		}
		value, err := page.Evaluate(script)
		if err != nil {
			return failure("%s", err)
		}
		result["result"] = value
		result["url"] = page.URL()
	}

	return domain.Outcome{Success: true, Result: result}
}

func failure(format string, args ...any) domain.Outcome {
	return domain.Outcome{Success: false, Error: fmt.Sprintf(format, args...)}
}

func stringParam(params domain.Params, key string) string {
	v, _ := params[key].(string)
	return v
}

func boolParam(params domain.Params, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}
