package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
)

//go:embed translations/*.toml
var builtin embed.FS

var (
	translatorMu sync.RWMutex
	translator   *I18n
	defaultLang  = cnst.LangDefault
)

var supportedLangs = []string{cnst.LangEN, cnst.LangZH}

// SetDefaultLanguage sets the language used when a request names none we support
func SetDefaultLanguage(lang string) {
	translatorMu.Lock()
	defer translatorMu.Unlock()
	for _, l := range supportedLangs {
		if l == lang {
			defaultLang = lang
			return
		}
	}
}

// InitTranslator installs the global translator. The built-in messages are
// always loaded; files in translationsPath, when set, override them.
func InitTranslator(translationsPath string) error {
	t := NewI18n(language.English)
	if err := t.LoadBuiltin(); err != nil {
		return err
	}
	if translationsPath != "" {
		if err := t.LoadTranslations(translationsPath); err != nil {
			return err
		}
	}
	translatorMu.Lock()
	translator = t
	translatorMu.Unlock()
	return nil
}

// GetTranslator returns the global translator, built from the built-in
// messages if InitTranslator was never called
func GetTranslator() *I18n {
	translatorMu.RLock()
	t := translator
	translatorMu.RUnlock()
	if t != nil {
		return t
	}
	_ = InitTranslator("")
	translatorMu.RLock()
	defer translatorMu.RUnlock()
	return translator
}

// I18n manages internationalization and translations
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
}

func NewI18n(defaultLang language.Tag) *I18n {
	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	return &I18n{
		bundle:      bundle,
		defaultLang: defaultLang,
	}
}

// LoadBuiltin loads the message files compiled into the binary
func (i *I18n) LoadBuiltin() error {
	entries, err := builtin.ReadDir("translations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := i.bundle.LoadMessageFileFS(builtin, "translations/"+e.Name()); err != nil {
			return fmt.Errorf("failed to load built-in translations %s: %w", e.Name(), err)
		}
	}
	return nil
}

// LoadTranslations loads translation files from the specified directory
func (i *I18n) LoadTranslations(translationsDir string) error {
	files, err := os.ReadDir(translationsDir)
	if err != nil {
		return fmt.Errorf("failed to read translations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".toml") {
			continue
		}
		if _, err := i.bundle.LoadMessageFile(filepath.Join(translationsDir, file.Name())); err != nil {
			return fmt.Errorf("failed to load translations %s: %w", file.Name(), err)
		}
	}
	return nil
}

// Translate returns a localized string for the given message ID and language.
// Unknown ids come back unchanged.
func (i *I18n) Translate(msgID string, lang string, templateData map[string]any) string {
	localizer := i18n.NewLocalizer(i.bundle, language.Make(lang).String(), i.defaultLang.String())

	lc := &i18n.LocalizeConfig{MessageID: msgID}
	if len(templateData) > 0 {
		lc.TemplateData = templateData
	}

	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID
	}
	return msg
}

// Language stores the caller's preferred language in the gin context
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(cnst.XLang, getLanguageFromRequest(c.Request))
		c.Next()
	}
}

// getLanguageFromRequest extracts language preference from HTTP headers
func getLanguageFromRequest(r *http.Request) string {
	if lang := r.Header.Get(cnst.XLang); lang != "" {
		return normalizeLang(lang)
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		first := strings.TrimSpace(strings.Split(strings.Split(accept, ",")[0], ";")[0])
		return normalizeLang(first)
	}

	return currentDefault()
}

// normalizeLang maps a language tag onto a supported base language
func normalizeLang(lang string) string {
	code := strings.ToLower(strings.Split(lang, "-")[0])
	for _, supported := range supportedLangs {
		if code == supported {
			return code
		}
	}
	return currentDefault()
}

func currentDefault() string {
	translatorMu.RLock()
	defer translatorMu.RUnlock()
	return defaultLang
}

// TranslateMessage translates a message ID using the context's language preference
func TranslateMessage(c *gin.Context, msgID string, data map[string]any) string {
	lang := c.GetString(cnst.XLang)
	if lang == "" {
		lang = currentDefault()
	}
	return GetTranslator().Translate(msgID, lang, data)
}
