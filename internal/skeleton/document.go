package skeleton

// Pos locates an element or expression in the original source text.
type Pos struct {
	Line      int `yaml:"line" json:"line"`
	Column    int `yaml:"column" json:"column"`
	EndLine   int `yaml:"end_line,omitempty" json:"end_line,omitempty"`
	EndColumn int `yaml:"end_column,omitempty" json:"end_column,omitempty"`
}

// Document is parser-level output for one source: declarations with every
// reference still spelled as a name.
type Document struct {
	ID        string    `yaml:"id" json:"id"`
	Text      string    `yaml:"text,omitempty" json:"text,omitempty"`
	Immutable bool      `yaml:"immutable,omitempty" json:"immutable,omitempty"`
	Imports   []string  `yaml:"imports,omitempty" json:"imports,omitempty"`
	Elements  []Element `yaml:"elements" json:"elements"`
}

// Element kinds accepted in documents.
const (
	ElementClass          = "Class"
	ElementEnumeration    = "Enumeration"
	ElementAssociation    = "Association"
	ElementFunction       = "Function"
	ElementNativeFunction = "NativeFunction"
)

type Element struct {
	Kind                   string         `yaml:"kind" json:"kind"`
	Package                string         `yaml:"package,omitempty" json:"package,omitempty"`
	Name                   string         `yaml:"name" json:"name"`
	TypeParameters         []string       `yaml:"type_parameters,omitempty" json:"type_parameters,omitempty"`
	MultiplicityParameters []string       `yaml:"multiplicity_parameters,omitempty" json:"multiplicity_parameters,omitempty"`
	Generalizations        []TypeRef      `yaml:"generalizations,omitempty" json:"generalizations,omitempty"`
	Properties             []PropertyDecl `yaml:"properties,omitempty" json:"properties,omitempty"`
	Values                 []string       `yaml:"values,omitempty" json:"values,omitempty"`
	Parameters             []Param        `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Return                 *TypeRef       `yaml:"return,omitempty" json:"return,omitempty"`
	ReturnMultiplicity     string         `yaml:"return_multiplicity,omitempty" json:"return_multiplicity,omitempty"`
	Body                   []Expr         `yaml:"body,omitempty" json:"body,omitempty"`
	Pos                    *Pos           `yaml:"pos,omitempty" json:"pos,omitempty"`
}

// Path returns the qualified name of the element.
func (e Element) Path() string {
	if e.Package == "" {
		return e.Name
	}
	return e.Package + "::" + e.Name
}

// TypeRef names a type: a class or primitive with arguments, a type
// parameter, or a function type.
type TypeRef struct {
	Name                  string           `yaml:"name,omitempty" json:"name,omitempty"`
	TypeArguments         []TypeRef        `yaml:"type_arguments,omitempty" json:"type_arguments,omitempty"`
	MultiplicityArguments []string         `yaml:"multiplicity_arguments,omitempty" json:"multiplicity_arguments,omitempty"`
	Function              *FunctionTypeRef `yaml:"function,omitempty" json:"function,omitempty"`
	Pos                   *Pos             `yaml:"pos,omitempty" json:"pos,omitempty"`
}

type FunctionTypeRef struct {
	Parameters         []Param `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Return             TypeRef `yaml:"return" json:"return"`
	ReturnMultiplicity string  `yaml:"return_multiplicity" json:"return_multiplicity"`
}

// Param is a function or lambda parameter. Lambda parameters may omit the
// type, which is then inferred from the call site.
type Param struct {
	Name         string   `yaml:"name" json:"name"`
	Type         *TypeRef `yaml:"type,omitempty" json:"type,omitempty"`
	Multiplicity string   `yaml:"multiplicity,omitempty" json:"multiplicity,omitempty"`
}

type PropertyDecl struct {
	Name         string  `yaml:"name" json:"name"`
	Type         TypeRef `yaml:"type" json:"type"`
	Multiplicity string  `yaml:"multiplicity" json:"multiplicity"`
	Pos          *Pos    `yaml:"pos,omitempty" json:"pos,omitempty"`
}

// Expression kinds accepted in function bodies.
const (
	ExprCall       = "call"
	ExprString     = "string"
	ExprInteger    = "integer"
	ExprFloat      = "float"
	ExprBoolean    = "boolean"
	ExprCollection = "collection"
	ExprVar        = "var"
	ExprLambda     = "lambda"
	ExprFuncRef    = "funcref"
	ExprNew        = "new"
	ExprCast       = "cast"
	ExprProperty   = "property"
	ExprEnum       = "enum"
	ExprLet        = "let"
)

// Expr is one node of a body expression tree. Which fields apply depends on
// Kind: Name is the function, variable, class, property or enumeration
// name; Args are call arguments, collection elements, or the single operand
// of property, cast and let.
type Expr struct {
	Kind       string     `yaml:"kind" json:"kind"`
	Name       string     `yaml:"name,omitempty" json:"name,omitempty"`
	Value      string     `yaml:"value,omitempty" json:"value,omitempty"`
	Member     string     `yaml:"member,omitempty" json:"member,omitempty"`
	Descriptor string     `yaml:"descriptor,omitempty" json:"descriptor,omitempty"`
	Args       []Expr     `yaml:"args,omitempty" json:"args,omitempty"`
	Params     []Param    `yaml:"params,omitempty" json:"params,omitempty"`
	Body       []Expr     `yaml:"body,omitempty" json:"body,omitempty"`
	Type       *TypeRef   `yaml:"type,omitempty" json:"type,omitempty"`
	Keys       []KeyValue `yaml:"keys,omitempty" json:"keys,omitempty"`
	Pos        *Pos       `yaml:"pos,omitempty" json:"pos,omitempty"`
}

type KeyValue struct {
	Name  string `yaml:"name" json:"name"`
	Value Expr   `yaml:"value" json:"value"`
}
