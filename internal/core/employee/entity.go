package employee

import (
	"encoding/json"
	"maps"
)

// Employee は社員エンティティです。JSON タグは REST API のフィールド名に合わせています。
// ストアが読み書きしない項目は Extra に生の JSON のまま保持し、往復で失われません。
type Employee struct {
	ID         int     `json:"id"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	MaidenName string  `json:"maidenName"`
	Age        int     `json:"age"`
	Gender     string  `json:"gender"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Username   string  `json:"username"`
	BirthDate  string  `json:"birthDate"`
	Image      string  `json:"image"`
	BloodGroup string  `json:"bloodGroup"`
	Role       string  `json:"role"`
	Company    Company `json:"company"`
	Address    Address `json:"address"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Company は社員の所属情報です。
type Company struct {
	Department string `json:"department"`
	Name       string `json:"name"`
	Title      string `json:"title"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Address は社員の住所です。
type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	StateCode  string `json:"stateCode"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`

	Extra map[string]json.RawMessage `json:"-"`
}

type (
	employeeFields Employee
	companyFields  Company
	addressFields  Address
)

// UnmarshalJSON は既知の項目を構造体へ、それ以外を Extra へ振り分けます。
func (e *Employee) UnmarshalJSON(data []byte) error {
	var fields employeeFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownFields(data, fields)
	if err != nil {
		return err
	}
	*e = Employee(fields)
	e.Extra = extra
	return nil
}

// MarshalJSON は既知の項目に Extra を重ねて出力します。既知の項目が優先されます。
func (e Employee) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(employeeFields(e), e.Extra)
}

func (c *Company) UnmarshalJSON(data []byte) error {
	var fields companyFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownFields(data, fields)
	if err != nil {
		return err
	}
	*c = Company(fields)
	c.Extra = extra
	return nil
}

func (c Company) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(companyFields(c), c.Extra)
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var fields addressFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownFields(data, fields)
	if err != nil {
		return err
	}
	*a = Address(fields)
	a.Extra = extra
	return nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(addressFields(a), a.Extra)
}

// unknownFields は data のキーのうち known が出力しないものを返します。
func unknownFields(data []byte, known any) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, err
	}
	for key := range typed {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	raw, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return raw, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// Clone は e の独立したコピーを返します。Extra の値は書き換えない前提で共有します。
func (e Employee) Clone() Employee {
	out := e
	out.Extra = maps.Clone(e.Extra)
	out.Company.Extra = maps.Clone(e.Company.Extra)
	out.Address.Extra = maps.Clone(e.Address.Extra)
	return out
}

// Draft は社員作成時の入力です。
type Draft struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
}

// Patch は社員更新時の入力です。nil のフィールドは変更しません。
type Patch struct {
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Age        *int    `json:"age,omitempty"`
	Gender     *string `json:"gender,omitempty"`
	Department *string `json:"department,omitempty"`
	Title      *string `json:"title,omitempty"`
}

// apply は p の設定済みフィールドを e にマージした結果を返します。
// 部署と役職は空文字の場合に既存値を維持します。
func (p Patch) apply(e Employee) Employee {
	merged := e.Clone()
	if p.FirstName != nil {
		merged.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		merged.LastName = *p.LastName
	}
	if p.Email != nil {
		merged.Email = *p.Email
	}
	if p.Phone != nil {
		merged.Phone = *p.Phone
	}
	if p.Age != nil {
		merged.Age = *p.Age
	}
	if p.Gender != nil {
		merged.Gender = *p.Gender
	}
	if p.Department != nil && *p.Department != "" {
		merged.Company.Department = *p.Department
	}
	if p.Title != nil && *p.Title != "" {
		merged.Company.Title = *p.Title
	}
	return merged
}
