package filemask

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/absfs/absfs"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Masker encrypts and decrypts targets on a filesystem. All calls on one
// Masker are serialized.
type Masker struct {
	// mu is held for the whole of Encrypt and Decrypt, including directory
	// descent. Unexported helpers assume it is held.
	mu sync.Mutex

	fs        absfs.FileSystem
	config    Config
	store     *SidecarStore
	log       *zap.Logger
	sep       string
	chunkSize int
	rand      io.Reader
}

// New creates a Masker over fs. A nil config uses the defaults.
func New(fs absfs.FileSystem, config *Config) (*Masker, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}

	cfg := config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	store, err := NewSidecarStore(fs, cfg.HiddenDirName)
	if err != nil {
		return nil, err
	}

	return &Masker{
		fs:        fs,
		config:    cfg,
		store:     store,
		log:       cfg.Logger.With(zap.String("component", "masker")),
		sep:       string([]byte{fs.Separator()}),
		chunkSize: cfg.ChunkSize,
		rand:      cfg.Rand,
	}, nil
}

// Store returns the sidecar store used by m
func (m *Masker) Store() *SidecarStore {
	return m.store
}

// Encrypt applies encode type typ to target and, depending on mode, the
// entries below it. Only a missing target or invalid arguments are returned
// as errors; every per-target problem is recorded in the report.
func (m *Masker) Encrypt(target string, mode SelectMode, typ EncodeType, password []byte) (*Report, error) {
	return m.run(target, mode, typ, password, true)
}

// Decrypt reverses encode type typ on target and, depending on mode, the
// entries below it.
func (m *Masker) Decrypt(target string, mode SelectMode, typ EncodeType, password []byte) (*Report, error) {
	return m.run(target, mode, typ, password, false)
}

// call carries the state of one public Encrypt or Decrypt call
type call struct {
	enc         Encoder
	id          *Identity
	encrypt     bool
	report      *Report
	visited     map[string]struct{}
	visitedDirs []os.FileInfo
}

func (m *Masker) run(target string, mode SelectMode, typ EncodeType, password []byte, encrypt bool) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ValidateFilePath(target); err != nil {
		return nil, err
	}
	if mode > DirectoryCascade {
		return nil, NewValidationError("mode", mode, "unknown select mode")
	}
	enc, err := NewEncoder(typ, m.fs, m.chunkSize)
	if err != nil {
		return nil, err
	}
	id, err := NewIdentity(password)
	if err != nil {
		return nil, err
	}

	op := "encrypt"
	if !encrypt {
		op = "decrypt"
	}
	if _, err := m.fs.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(NewIOError(op, target, err), ErrTargetNotFound)
		}
		return nil, NewIOError(op, target, err)
	}

	c := &call{
		enc:     enc,
		id:      id,
		encrypt: encrypt,
		report:  &Report{},
		visited: make(map[string]struct{}),
	}
	m.log.Debug("start",
		zap.String("op", op),
		zap.String("path", target),
		zap.Stringer("mode", mode),
		zap.Stringer("type", typ))

	m.walk(c, target, mode)
	return c.report, nil
}

// process runs the state machine for a single target
func (m *Masker) process(c *call, target string) {
	var res Result
	if c.encrypt {
		res = m.encryptOne(c, target)
	} else {
		res = m.decryptOne(c, target)
	}
	m.record(c, res)
}

func (m *Masker) record(c *call, res Result) {
	c.report.add(res)

	fields := []zap.Field{
		zap.String("path", res.Path),
		zap.Stringer("type", res.Type),
		zap.Stringer("outcome", res.Outcome),
	}
	switch {
	case res.Outcome == SkipUnsupportedDirectory:
		// expected, not worth a log line
	case !res.Outcome.Skipped():
		if res.NewPath != "" {
			fields = append(fields, zap.String("new_path", res.NewPath))
		}
		m.log.Info("processed", fields...)
	case res.Err != nil:
		m.log.Warn("skipped", append(fields, zap.Error(res.Err))...)
	default:
		m.log.Info("skipped", fields...)
	}
}

func (m *Masker) encryptOne(c *call, target string) Result {
	typ := c.enc.Type()
	res := Result{Path: target, Type: typ}
	skip := func(o Outcome, err error) Result {
		res.Outcome = o
		res.Err = err
		return res
	}

	if m.store.IsSidecar(target) {
		return skip(SkipSidecarFile, nil)
	}
	info, err := m.fs.Stat(target)
	if err != nil {
		return skip(SkipTargetIO, NewIOError("stat", target, err))
	}
	if info.IsDir() && !c.enc.SupportsDirectories() {
		return skip(SkipUnsupportedDirectory, nil)
	}

	if err := m.store.EnsureContainerDir(target); err != nil {
		return skip(SkipSidecarIO, err)
	}
	sc, err := m.store.Open(target, true)
	if err != nil {
		return skip(SkipSidecarIO, err)
	}
	defer sc.Close()

	encodeMap, outcome, err := m.prepareEncrypt(c, sc, typ)
	if outcome != OutcomeEncrypted {
		return skip(outcome, err)
	}

	var param *EncodeMap
	if typ == EncodeContent {
		param = &encodeMap
	}
	result, err := invokeEncrypt(c.enc, target, param)
	if err != nil {
		return skip(SkipVariantFailed, err)
	}

	if typ == EncodeHeader || typ == EncodeName {
		if err := sc.SetPayload(typ, encodeMap.Substitute(result.Raw, true)); err != nil {
			m.log.Error("payload write failed after encoding", zap.String("path", target), zap.Error(err))
			return skip(SkipSidecarIO, err)
		}
	}
	if err := sc.SetFlag(typ, true); err != nil {
		m.log.Error("flag write failed after encoding", zap.String("path", target), zap.Error(err))
		return skip(SkipSidecarIO, err)
	}
	if err := sc.Close(); err != nil {
		return skip(SkipSidecarIO, err)
	}

	res.Outcome = OutcomeEncrypted
	if typ == EncodeName {
		newName := string(result.Working)
		dir, _ := splitPath(target, m.sep)
		res.NewPath = joinPath(m.sep, dir, newName)
		if err := sc.Rename(newName); err != nil {
			m.log.Error("sidecar rename failed", zap.String("path", target), zap.Error(err))
			res.Err = err
		}
	}
	return res
}

// prepareEncrypt validates or initializes the sidecar and returns the
// unmasked encode map. Any outcome other than OutcomeEncrypted is a skip.
func (m *Masker) prepareEncrypt(c *call, sc *Sidecar, typ EncodeType) (EncodeMap, Outcome, error) {
	size, err := sc.Size()
	if err != nil {
		return EncodeMap{}, SkipSidecarIO, err
	}
	flags, err := sc.Flags()
	if err != nil {
		return EncodeMap{}, SkipSidecarIO, err
	}

	if flags.Empty() {
		encodeMap, err := m.initialize(c, sc)
		if err != nil {
			return EncodeMap{}, SkipSidecarIO, err
		}
		return encodeMap, OutcomeEncrypted, nil
	}
	if size < MinSidecarSize {
		return EncodeMap{}, SkipSidecarCorrupt, NewCorruptionError(sc.Path(), "record shorter than its flags claim")
	}

	if outcome, err := m.checkOwner(c, sc); err != nil {
		return EncodeMap{}, outcome, err
	}
	if flags.Has(typ) {
		return EncodeMap{}, SkipAlreadyEncoded, nil
	}
	for _, other := range flags.Set() {
		if typ.conflictsWith(other) {
			return EncodeMap{}, SkipMutuallyExclusive, nil
		}
	}

	encodeMap, err := m.loadEncodeMap(c, sc)
	if err != nil {
		return EncodeMap{}, SkipSidecarCorrupt, err
	}
	return encodeMap, OutcomeEncrypted, nil
}

// initialize writes the ownership tag and a fresh encode map
func (m *Masker) initialize(c *call, sc *Sidecar) (EncodeMap, error) {
	encodeMap, err := GeneratePermutation(m.rand)
	if err != nil {
		return EncodeMap{}, err
	}
	if err := sc.SetOwnershipTag(c.id.OwnershipTag()); err != nil {
		return EncodeMap{}, err
	}
	if err := sc.SetEncodeMap(c.id.Mask(encodeMap[:])); err != nil {
		return EncodeMap{}, err
	}
	return encodeMap, nil
}

func (m *Masker) checkOwner(c *call, sc *Sidecar) (Outcome, error) {
	tag, err := sc.OwnershipTag()
	if err != nil {
		return SkipSidecarIO, err
	}
	want := c.id.OwnershipTag()
	if !bytes.Equal(tag[:], want[:]) {
		return SkipOwnershipMismatch, NewAuthenticationError(sc.Path(), ErrOwnerMismatch)
	}
	return OutcomeEncrypted, nil
}

func (m *Masker) loadEncodeMap(c *call, sc *Sidecar) (EncodeMap, error) {
	masked, err := sc.EncodeMap()
	if err != nil {
		return EncodeMap{}, err
	}
	encodeMap, err := EncodeMapFromBytes(c.id.Mask(masked))
	if err != nil {
		return EncodeMap{}, &CorruptionError{Path: sc.Path(), Message: "stored encode map is invalid", Err: err}
	}
	return encodeMap, nil
}

func (m *Masker) decryptOne(c *call, target string) Result {
	typ := c.enc.Type()
	res := Result{Path: target, Type: typ}
	skip := func(o Outcome, err error) Result {
		res.Outcome = o
		res.Err = err
		return res
	}

	if m.store.IsSidecar(target) {
		return skip(SkipSidecarFile, nil)
	}
	info, err := m.fs.Stat(target)
	if err != nil {
		return skip(SkipTargetIO, NewIOError("stat", target, err))
	}
	if info.IsDir() && !c.enc.SupportsDirectories() {
		return skip(SkipUnsupportedDirectory, nil)
	}

	exists, err := m.store.Exists(target)
	if err != nil {
		return skip(SkipSidecarIO, err)
	}
	if !exists {
		return skip(SkipNeverEncrypted, nil)
	}
	sc, err := m.store.Open(target, false)
	if err != nil {
		if errors.Is(err, ErrSidecarNotFound) {
			return skip(SkipNeverEncrypted, nil)
		}
		return skip(SkipSidecarIO, err)
	}
	defer sc.Close()

	size, err := sc.Size()
	if err != nil {
		return skip(SkipSidecarIO, err)
	}
	if size < MinSidecarSize {
		return skip(SkipSidecarCorrupt, NewCorruptionError(sc.Path(), "record too short"))
	}
	if outcome, err := m.checkOwner(c, sc); err != nil {
		return skip(outcome, err)
	}
	flags, err := sc.Flags()
	if err != nil {
		return skip(SkipSidecarIO, err)
	}
	if !flags.Has(typ) {
		return skip(SkipFlagNotSet, nil)
	}
	encodeMap, err := m.loadEncodeMap(c, sc)
	if err != nil {
		return skip(SkipSidecarCorrupt, err)
	}

	var payload []byte
	var param *EncodeMap
	switch typ {
	case EncodeName, EncodeHeader:
		stored, err := sc.Payload(typ)
		if err != nil {
			return skip(SkipSidecarIO, err)
		}
		payload = encodeMap.Substitute(stored, false)
	case EncodeContent:
		param = &encodeMap
	}

	if err := invokeDecrypt(c.enc, target, payload, param); err != nil {
		return skip(SkipVariantFailed, err)
	}

	if err := sc.SetFlag(typ, false); err != nil {
		m.log.Error("flag write failed after decoding", zap.String("path", target), zap.Error(err))
		return skip(SkipSidecarIO, err)
	}
	if typ == EncodeName {
		if err := sc.TruncateNamePayload(); err != nil {
			return skip(SkipSidecarIO, err)
		}
	}
	if err := sc.Close(); err != nil {
		return skip(SkipSidecarIO, err)
	}

	res.Outcome = OutcomeDecrypted
	if typ == EncodeName {
		name := string(payload)
		dir, _ := splitPath(target, m.sep)
		res.NewPath = joinPath(m.sep, dir, name)
		if err := sc.Rename(name); err != nil {
			m.log.Error("sidecar rename failed", zap.String("path", target), zap.Error(err))
			res.Err = err
		}
	}
	return res
}

// invokeEncrypt runs enc.Encrypt, converting a panic into an error so that
// the remaining targets of a walk are still processed
func invokeEncrypt(enc Encoder, target string, m *EncodeMap) (res *EncryptResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in %s encoder: %v", enc.Type(), r)
		}
	}()
	return enc.Encrypt(target, m)
}

func invokeDecrypt(enc Encoder, target string, payload []byte, m *EncodeMap) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in %s decoder: %v", enc.Type(), r)
		}
	}()
	return enc.Decrypt(target, payload, m)
}
