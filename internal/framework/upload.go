package framework

// UploadedFile is a framework-native descriptor of an uploaded file that
// has been spooled to disk.
type UploadedFile struct {
	tmpName         string
	size            int64
	err             int
	clientFilename  string
	clientMediaType string
}

// NewUploadedFile creates a native uploaded file descriptor.
func NewUploadedFile(tmpName string, size int64, errCode int, clientFilename, clientMediaType string) *UploadedFile {
	return &UploadedFile{
		tmpName:         tmpName,
		size:            size,
		err:             errCode,
		clientFilename:  clientFilename,
		clientMediaType: clientMediaType,
	}
}

// TmpName returns the path of the spooled file.
func (f *UploadedFile) TmpName() string { return f.tmpName }

func (f *UploadedFile) Size() int64 { return f.size }

func (f *UploadedFile) Error() int { return f.err }

func (f *UploadedFile) ClientFilename() string { return f.clientFilename }

func (f *UploadedFile) ClientMediaType() string { return f.clientMediaType }

// FileNode is a node of the native uploaded file tree.
type FileNode struct {
	File     *UploadedFile
	Children Files
}

// Files maps form field names to native file nodes.
type Files map[string]*FileNode

// Walk calls fn for each leaf of the tree, passing the bracketed field path.
func (f Files) Walk(fn func(path string, file *UploadedFile)) {
	f.walk("", fn)
}

func (f Files) walk(prefix string, fn func(string, *UploadedFile)) {
	for key, node := range f {
		if node == nil {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "[" + key + "]"
		}

		if node.File != nil {
			fn(path, node.File)
			continue
		}

		node.Children.walk(path, fn)
	}
}
