// loader.go — загрузка каталогов переводов из embed.FS.
package i18n

import (
	"fmt"
	"log/slog"
)

// catalogLangs — языки, для которых обязателен каталог locales/<lang>.json.
var catalogLangs = []string{"pt", "en", "es", "fr"}

// LoadFromEmbedFS загружает все каталоги переводов из встроенной файловой системы.
func LoadFromEmbedFS(bundle *Bundle, logger *slog.Logger) error {
	for _, lang := range catalogLangs {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := LocaleFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}

		if err := bundle.LoadMessages(lang, data); err != nil {
			return err
		}
	}

	logger.Info("i18n каталоги загружены", slog.Int("languages", len(catalogLangs)))
	return nil
}
