package colorspace

import (
	"crypto/sha256"
	"sync"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/logger"
)

type compiled struct {
	transform *Transform
	err       error
}

// Manager нормализует изображения в sRGB и кэширует скомпилированные
// преобразования по SHA-256 профиля. Безопасен для параллельного использования.
type Manager struct {
	mu    sync.Mutex
	cache map[[sha256.Size]byte]compiled
}

// NewManager создаёт менеджер с пустым кэшем.
func NewManager() *Manager {
	return &Manager{cache: make(map[[sha256.Size]byte]compiled)}
}

// Transform возвращает преобразование для профиля, компилируя его при первом обращении.
// Ошибки разбора тоже кэшируются.
func (m *Manager) Transform(icc []byte) (*Transform, error) {
	key := sha256.Sum256(icc)

	m.mu.Lock()
	c, ok := m.cache[key]
	m.mu.Unlock()
	if ok {
		return c.transform, c.err
	}

	p, err := Parse(icc)
	if err == nil {
		c.transform = Compile(p)
		logger.Debugf("ICC профиль %x скомпилирован (%s v%d, identity=%t)",
			key[:6], p.ColorSpace, p.Version, c.transform.Identity())
	}
	c.err = err

	m.mu.Lock()
	m.cache[key] = c
	m.mu.Unlock()
	return c.transform, c.err
}

// Normalize приводит пиксели к sRGB. Изображения без профиля не меняются.
// Если профиль не разобран или не поддерживается, пиксели остаются как есть,
// а возвращается ошибка ProfileParse (не фатальная для задачи).
// В любом случае после вызова изображение помечено как sRGB.
func (m *Manager) Normalize(img *codec.Image) error {
	defer func() {
		img.ColorSpace = codec.ColorSpaceSRGB
		img.ICC = nil
	}()

	if img.ColorSpace != codec.ColorSpaceEmbedded || len(img.ICC) == 0 {
		return nil
	}
	t, err := m.Transform(img.ICC)
	if err != nil {
		return imgerr.New(imgerr.ProfileParse, "normalize color", err)
	}
	t.Apply(img.Pixels)
	return nil
}

// Size возвращает число закэшированных профилей.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

/*
Возможные расширения:
- LUT профили (mAB/A2B0) через трилинейную интерполяцию
- Вывод в Display P3 вместо sRGB для широкого охвата
*/
