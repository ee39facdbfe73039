package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/console/internal/browser"
)

// Strategy pulls the raw text of the document currently opened from the
// result list. Client.Extract locates and opens the document, calls Fetch,
// then always calls Leave to get back to the list.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, v *View) (string, error)
	Leave(ctx context.Context, v *View) error
}

// View is what a Strategy may touch while a document is open.
type View struct {
	drv      browser.Driver
	clip     browser.Clipboard
	timeouts config.Timeouts
	logger   *slog.Logger
}

// TextRender switches the document view to plain-text rendering and reads
// the rendered node.
var TextRender Strategy = textRender{}

// Clipboard opens the document editor, copies its whole content through the
// OS clipboard and cancels the edit. Two runs on one host must not overlap.
var Clipboard Strategy = clipboardCopy{}

// StrategyByName maps a configured strategy name to its Strategy.
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case config.StrategyText, "":
		return TextRender, nil
	case config.StrategyClipboard:
		return Clipboard, nil
	}
	return nil, fmt.Errorf("console: unknown extraction strategy %q", name)
}

type textRender struct{}

func (textRender) Name() string { return config.StrategyText }

func (textRender) Fetch(ctx context.Context, v *View) (string, error) {
	if err := v.drv.WaitUntil(ctx, browser.Visible(locRenderAs), v.timeouts.RenderMode); err != nil {
		return "", fmt.Errorf("render mode selector: %w", err)
	}
	sel, err := v.drv.Element(ctx, locRenderAs)
	if err != nil {
		return "", fmt.Errorf("render mode selector: %w", err)
	}
	if err := sel.Select(ctx, renderAsText); err != nil {
		return "", fmt.Errorf("switch to text rendering: %w", err)
	}
	if err := v.drv.Pause(ctx, v.timeouts.RenderSettle); err != nil {
		return "", err
	}
	code, err := v.drv.Element(ctx, locRenderedDoc)
	if err != nil {
		return "", fmt.Errorf("rendered document: %w", err)
	}
	return code.Text(ctx)
}

func (textRender) Leave(ctx context.Context, v *View) error {
	return clickBack(ctx, v)
}

type clipboardCopy struct{}

var errEmptyClipboard = errors.New("clipboard is empty after copy")

func (clipboardCopy) Name() string { return config.StrategyClipboard }

func (clipboardCopy) Fetch(ctx context.Context, v *View) (string, error) {
	if err := v.drv.WaitUntil(ctx, browser.Clickable(locEditDoc), v.timeouts.EditButton); err != nil {
		return "", fmt.Errorf("edit button: %w", err)
	}
	edit, err := v.drv.Element(ctx, locEditDoc)
	if err != nil {
		return "", fmt.Errorf("edit button: %w", err)
	}
	if err := edit.Click(ctx); err != nil {
		return "", fmt.Errorf("enter edit mode: %w", err)
	}
	if err := v.drv.WaitUntil(ctx, browser.Visible(locEditorLines), v.timeouts.Editor); err != nil {
		return "", fmt.Errorf("editor: %w", err)
	}

	for _, sc := range []browser.Shortcut{browser.SelectAll, browser.Copy} {
		if err := v.drv.Press(ctx, sc); err != nil {
			return "", err
		}
	}

	raw, err := v.clip.Read()
	if cerr := v.clip.Clear(); cerr != nil {
		v.logger.Warn("console: clear clipboard", "error", cerr)
	}
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", errEmptyClipboard
	}
	return raw, nil
}

// Leave discards the edit when the editor is open, waits for the back
// control to come back, then returns to the list.
func (clipboardCopy) Leave(ctx context.Context, v *View) error {
	if err := v.drv.WaitUntil(ctx, browser.Visible(locCancelEdit), v.timeouts.Settle); err == nil {
		cancel, err := v.drv.Element(ctx, locCancelEdit)
		if err != nil {
			return fmt.Errorf("cancel edit: %w", err)
		}
		if err := cancel.Click(ctx); err != nil {
			return fmt.Errorf("cancel edit: %w", err)
		}
		if err := v.drv.WaitUntil(ctx, browser.Clickable(locBackClickable), v.timeouts.Back); err != nil {
			return err
		}
	}
	return clickBack(ctx, v)
}

func clickBack(ctx context.Context, v *View) error {
	back, err := v.drv.Element(ctx, locBack)
	if err != nil {
		return err
	}
	return back.Click(ctx)
}
